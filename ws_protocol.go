package stencil

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Preview protocol. Every websocket message is an 8 byte envelope followed by
// the payload:
//
//	version(1) reserved(2) type(1) length(4, LE)
const (
	ProtocolVersion byte = 1

	MessageTypeFrame     byte = 0x01
	MessageTypeMetadata  byte = 0x02
	MessageTypeStreamEnd byte = 0x03

	EnvelopeHeaderSize = 8
)

type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte
	Type     byte
	Length   uint32
}

// FrameMessage is one rendered canvas. Revision goes up by one for every
// render.
type FrameMessage struct {
	Revision uint32
	PNG      []byte
}

// StreamEndMessage is sent before the server closes the connection.
type StreamEndMessage struct {
	Error bool
	Msg   string
}

// WSMessage is an envelope and its decoded payload, one of FrameMessage,
// Metadata or StreamEndMessage.
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{}
}

func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	copy(buf[1:3], env.Reserved[:])
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	copy(env.Reserved[:], buf[1:3])
	return env, nil
}

// EncodeFrameMessage lays out the revision (uint32 LE) followed by the PNG
// bytes.
func EncodeFrameMessage(msg FrameMessage) []byte {
	buf := make([]byte, 4+len(msg.PNG))
	binary.LittleEndian.PutUint32(buf[0:4], msg.Revision)
	copy(buf[4:], msg.PNG)
	return buf
}

func DecodeFrameMessage(buf []byte) (FrameMessage, error) {
	if len(buf) < 4 {
		return FrameMessage{}, fmt.Errorf("buffer too short for FRAME message: expected at least 4 bytes, got %d", len(buf))
	}
	png := make([]byte, len(buf)-4)
	copy(png, buf[4:])
	return FrameMessage{
		Revision: binary.LittleEndian.Uint32(buf[0:4]),
		PNG:      png,
	}, nil
}

// encodeJSONPayload is a uint32 LE length followed by the JSON encoding of v.
func encodeJSONPayload(v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)
	return buf, nil
}

func decodeJSONPayload(kind string, buf []byte, v interface{}) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for %s message: expected at least 4 bytes, got %d", kind, len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])
	if expected := 4 + uint64(jsonLength); uint64(len(buf)) != expected {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expected, len(buf))
	}

	if err := json.Unmarshal(buf[4:], v); err != nil {
		return fmt.Errorf("failed to unmarshal %s message: %w", kind, err)
	}
	return nil
}

func EncodeMetadataMessage(metadata Metadata) ([]byte, error) {
	buf, err := encodeJSONPayload(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return buf, nil
}

func DecodeMetadataMessage(buf []byte) (Metadata, error) {
	var metadata Metadata
	if err := decodeJSONPayload("METADATA", buf, &metadata); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

func EncodeStreamEndMessage(msg StreamEndMessage) ([]byte, error) {
	buf, err := encodeJSONPayload(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream end message: %w", err)
	}
	return buf, nil
}

func DecodeStreamEndMessage(buf []byte) (StreamEndMessage, error) {
	var msg StreamEndMessage
	if err := decodeJSONPayload("STREAM_END", buf, &msg); err != nil {
		return StreamEndMessage{}, err
	}
	return msg, nil
}

// EncodeWSMessage encodes the payload for the header's type and prepends the
// header. The header length is set from the payload.
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Header.Type {
	case MessageTypeFrame:
		frame, ok := msg.Payload.(FrameMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected FrameMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload = EncodeFrameMessage(frame)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(Metadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected Metadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeMetadataMessage(metadata)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected StreamEndMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeStreamEndMessage(streamEnd)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}
	if err != nil {
		return nil, err
	}

	msg.Header.Length = uint32(len(payload))
	return append(EncodeEnvelopeHeader(msg.Header), payload...), nil
}

// newWSMessage wraps payload with a current version header.
func newWSMessage(msgType byte, payload interface{}) WSMessage {
	return WSMessage{
		Header:  EnvelopeHeader{Version: ProtocolVersion, Type: msgType},
		Payload: payload,
	}
}

func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	expectedSize := uint64(EnvelopeHeaderSize) + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}
	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeFrame:
		payload, err = DecodeFrameMessage(payloadBytes)
	case MessageTypeMetadata:
		payload, err = DecodeMetadataMessage(payloadBytes)
	case MessageTypeStreamEnd:
		payload, err = DecodeStreamEndMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}
	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{Header: env, Payload: payload}, nil
}
