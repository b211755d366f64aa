package kvstore

import (
	"encoding/binary"
	"fmt"
)

type cmdKind uint8

const (
	cmdPut cmdKind = iota
	cmdGet
	cmdDelete
)

type command struct {
	kind  cmdKind
	key   string
	value []byte
}

// encodeCmd encodes cmd using the fixed layout:
//
//	[0]            cmdKind
//	[1:5]          keyLen, uint32 big-endian
//	[5:5+keyLen]   key
//	[...:+4]       valueLen, uint32 big-endian (Put only)
//	[...]          value (Put only)
func encodeCmd(cmd command) ([]byte, error) {
	keyLen := uint32(len(cmd.key))
	if keyLen == 0 {
		return nil, fmt.Errorf("kvstore: key cannot be empty")
	}

	size := 1 + 4 + int(keyLen)
	if cmd.kind == cmdPut {
		size += 4 + len(cmd.value)
	}

	buf := make([]byte, size)
	buf[0] = byte(cmd.kind)
	binary.BigEndian.PutUint32(buf[1:5], keyLen)
	copy(buf[5:5+keyLen], cmd.key)

	if cmd.kind == cmdPut {
		valOffset := 5 + keyLen
		binary.BigEndian.PutUint32(buf[valOffset:valOffset+4], uint32(len(cmd.value)))
		copy(buf[valOffset+4:], cmd.value)
	}

	return buf, nil
}

// decodeCmd decodes a command encoded by encodeCmd.
func decodeCmd(msg []byte) (command, error) {
	var cmd command

	if len(msg) < 5 {
		return cmd, fmt.Errorf("kvstore: command too short: %d bytes", len(msg))
	}

	cmd.kind = cmdKind(msg[0])

	keyLen := int(binary.BigEndian.Uint32(msg[1:5]))
	if keyLen <= 0 || keyLen > 1024 {
		return cmd, fmt.Errorf("kvstore: invalid key length: %d", keyLen)
	}
	if len(msg) < 5+keyLen {
		return cmd, fmt.Errorf("kvstore: incomplete message for key: need %d, got %d", 5+keyLen, len(msg))
	}
	cmd.key = string(msg[5 : 5+keyLen])

	if cmd.kind == cmdPut {
		valOffset := 5 + keyLen
		if len(msg) < valOffset+4 {
			return cmd, fmt.Errorf("kvstore: message too short for value length")
		}
		valueLen := int(binary.BigEndian.Uint32(msg[valOffset : valOffset+4]))
		if valueLen < 0 || valueLen > 1024*1024 {
			return cmd, fmt.Errorf("kvstore: invalid value length: %d", valueLen)
		}
		if len(msg) < valOffset+4+valueLen {
			return cmd, fmt.Errorf("kvstore: incomplete message for value: need %d, got %d", valOffset+4+valueLen, len(msg))
		}
		cmd.value = append([]byte(nil), msg[valOffset+4:valOffset+4+valueLen]...)
	}

	return cmd, nil
}

// EncodePut returns the entry payload for a Put(key, value) command.
func EncodePut(key string, value []byte) ([]byte, error) {
	return encodeCmd(command{kind: cmdPut, key: key, value: value})
}

// EncodeDelete returns the entry payload for a Delete(key) command.
func EncodeDelete(key string) ([]byte, error) {
	return encodeCmd(command{kind: cmdDelete, key: key})
}
