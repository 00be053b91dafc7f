// Package ipc implements the local administrative channel: the framed
// binary request/reply protocol of spec §4.6, and the Unix-socket server
// that serves it. Frame layout is grounded directly on
// original_source/include/qmem/protocol.h; the decode/encode split and
// FrameError taxonomy echo the structural pattern (length-prefixed framing,
// typed decode errors) of _examples/other_examples'
// pithecene-io-quarry ipc/frame.go, adjusted to little-endian per spec.
package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the fixed 4-byte header constant ("QMEM").
const Magic uint32 = 0x514D454D

// Version is the current protocol version.
const Version uint16 = 1

// MaxPayload is the maximum payload size in either direction (256 KiB).
const MaxPayload = 256 * 1024

// headerSize is the fixed wire size of Header: magic(4) + version(2) +
// type(2) + length(4) + seq(4).
const headerSize = 16

// ReqType enumerates the IPC request/response types of spec §4.6.
type ReqType uint16

const (
	ReqStatus    ReqType = 1
	ReqSnapshot  ReqType = 2
	ReqHistory   ReqType = 3
	ReqSubscribe ReqType = 5
	ReqServices  ReqType = 6
	ReqShutdown  ReqType = 99
)

// Header is the fixed 16-byte, little-endian frame header.
type Header struct {
	Magic   uint32
	Version uint16
	Type    ReqType
	Length  uint32
	Seq     uint32
}

// FrameErrorKind distinguishes the framing failure modes of spec §7's
// Framing error kind.
type FrameErrorKind int

const (
	FrameErrorBadMagic FrameErrorKind = iota
	FrameErrorBadVersion
	FrameErrorTooLarge
	FrameErrorShortRead
)

// FrameError is returned by ReadFrame for any malformed header or payload.
// Per spec §7/§4.6 policy, a FrameError always means: close the connection,
// mutate no daemon state.
type FrameError struct {
	Kind FrameErrorKind
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("ipc framing error (%d): %v", e.Kind, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// EncodeHeader writes h in its fixed 16-byte little-endian wire form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.LittleEndian.PutUint32(buf[8:12], h.Length)
	binary.LittleEndian.PutUint32(buf[12:16], h.Seq)
	return buf
}

// DecodeHeader parses a 16-byte buffer into a Header without validating it.
func DecodeHeader(buf []byte) Header {
	return Header{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Version: binary.LittleEndian.Uint16(buf[4:6]),
		Type:    ReqType(binary.LittleEndian.Uint16(buf[6:8])),
		Length:  binary.LittleEndian.Uint32(buf[8:12]),
		Seq:     binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// ReadFrame reads one framed message from r: the fixed header, validated
// for magic/version/size, followed by exactly Length payload bytes.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	hdrBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return Header{}, nil, &FrameError{Kind: FrameErrorShortRead, Err: err}
	}
	h := DecodeHeader(hdrBuf)

	if h.Magic != Magic {
		return h, nil, &FrameError{Kind: FrameErrorBadMagic, Err: fmt.Errorf("got magic %#x", h.Magic)}
	}
	if h.Version != Version {
		return h, nil, &FrameError{Kind: FrameErrorBadVersion, Err: fmt.Errorf("got version %d", h.Version)}
	}
	if h.Length > MaxPayload {
		return h, nil, &FrameError{Kind: FrameErrorTooLarge, Err: fmt.Errorf("payload %d exceeds max %d", h.Length, MaxPayload)}
	}

	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return h, nil, &FrameError{Kind: FrameErrorShortRead, Err: err}
		}
	}
	return h, payload, nil
}

// WriteFrame writes one framed message: header, followed by payload.
func WriteFrame(w io.Writer, reqType ReqType, seq uint32, payload []byte) error {
	h := Header{Magic: Magic, Version: Version, Type: reqType, Length: uint32(len(payload)), Seq: seq}
	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}
