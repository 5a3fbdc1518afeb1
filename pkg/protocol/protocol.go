// Package protocol encodes and decodes the Stellarium telescope server
// protocol spoken over TCP sockets and serial lines. All integers are
// little-endian and every message starts with its total length and type:
//
//	position (server -> client): len=24 type=0 time:i64µs ra:u32 dec:i32 status:i32
//	goto     (client -> server): len=20 type=0 time:i64µs ra:u32 dec:i32
//
// RA maps 0x100000000 to 24h and Dec maps 0x40000000 to 90°.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"telescope/pkg/astro"
)

var ErrMalformed = errors.New("malformed message")

const (
	HeaderLen      = 4
	PositionMsgLen = 24
	GotoMsgLen     = 20

	TypePosition = 0
	TypeGoto     = 0

	raScale  = 1 << 32
	decScale = 1 << 30
)

// Position is a decoded position report.
type Position struct {
	Time   time.Time
	Pos    astro.Equatorial
	Status int32
}

// Goto is a decoded goto command.
type Goto struct {
	Time time.Time
	Pos  astro.Equatorial
}

// readFrame returns the body of the next message of type want and length
// size, skipping messages of any other type.
func readFrame(r io.Reader, want uint16, size int) ([]byte, error) {
	var header [HeaderLen]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}

		n := int(binary.LittleEndian.Uint16(header[0:2]))
		kind := binary.LittleEndian.Uint16(header[2:4])
		if n < HeaderLen {
			return nil, fmt.Errorf("%w: length %d", ErrMalformed, n)
		}

		body := make([]byte, n-HeaderLen)
		if _, err := io.ReadFull(r, body); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if kind != want {
			continue
		}
		if n != size {
			return nil, fmt.Errorf("%w: type %d with length %d", ErrMalformed, kind, n)
		}
		return body, nil
	}
}

// ReadPosition blocks until the next position report arrives on r.
func ReadPosition(r io.Reader) (Position, error) {
	body, err := readFrame(r, TypePosition, PositionMsgLen)
	if err != nil {
		return Position{}, err
	}
	if err := checkDec(body[12:16]); err != nil {
		return Position{}, err
	}
	return Position{
		Time:   time.UnixMicro(int64(binary.LittleEndian.Uint64(body[0:8]))),
		Pos:    decodeAngles(body[8:16]),
		Status: int32(binary.LittleEndian.Uint32(body[16:20])),
	}, nil
}

// ReadGoto blocks until the next goto command arrives on r.
func ReadGoto(r io.Reader) (Goto, error) {
	body, err := readFrame(r, TypeGoto, GotoMsgLen)
	if err != nil {
		return Goto{}, err
	}
	if err := checkDec(body[12:16]); err != nil {
		return Goto{}, err
	}
	return Goto{
		Time: time.UnixMicro(int64(binary.LittleEndian.Uint64(body[0:8]))),
		Pos:  decodeAngles(body[8:16]),
	}, nil
}

// EncodeGoto builds a goto command stamped with t.
func EncodeGoto(t time.Time, pos astro.Equatorial) []byte {
	buf := make([]byte, GotoMsgLen)
	binary.LittleEndian.PutUint16(buf[0:2], GotoMsgLen)
	binary.LittleEndian.PutUint16(buf[2:4], TypeGoto)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(t.UnixMicro()))
	encodeAngles(buf[12:20], pos)
	return buf
}

// EncodePosition builds a position report stamped with t.
func EncodePosition(t time.Time, pos astro.Equatorial, status int32) []byte {
	buf := make([]byte, PositionMsgLen)
	binary.LittleEndian.PutUint16(buf[0:2], PositionMsgLen)
	binary.LittleEndian.PutUint16(buf[2:4], TypePosition)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(t.UnixMicro()))
	encodeAngles(buf[12:20], pos)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(status))
	return buf
}

func encodeAngles(buf []byte, pos astro.Equatorial) {
	ra := uint32(int64(math.Floor(0.5+pos.RA*raScale/(2*math.Pi))) & 0xFFFFFFFF)
	dec := int32(math.Floor(0.5 + pos.Dec*decScale/(math.Pi/2)))
	binary.LittleEndian.PutUint32(buf[0:4], ra)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dec))
}

func checkDec(buf []byte) error {
	dec := int64(int32(binary.LittleEndian.Uint32(buf)))
	if dec > decScale || dec < -decScale {
		return fmt.Errorf("%w: declination 0x%08x out of range", ErrMalformed, uint32(dec))
	}
	return nil
}

func decodeAngles(buf []byte) astro.Equatorial {
	ra := binary.LittleEndian.Uint32(buf[0:4])
	dec := int32(binary.LittleEndian.Uint32(buf[4:8]))
	return astro.Equatorial{
		RA:  float64(ra) * 2 * math.Pi / raScale,
		Dec: float64(dec) * (math.Pi / 2) / decScale,
	}
}
