package grpcnet

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// codecName is the content subtype both ends negotiate.
const codecName = "rma"

func init() {
	encoding.RegisterCodec(codec{})
}

// wireMessage is implemented by every message carried by the RMA service.
type wireMessage interface {
	appendWire(b []byte) []byte
	parseWire(b []byte) error
}

// codec encodes wire messages in protobuf wire format without generated
// code. Field numbers are stable: see the field constants below.
type codec struct{}

func (codec) Name() string { return codecName }

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("rma codec: cannot marshal %T", v)
	}
	return m.appendWire(nil), nil
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("rma codec: cannot unmarshal into %T", v)
	}
	return m.parseWire(data)
}

// getRequest fields.
const (
	fieldGetWindow protowire.Number = 1
	fieldGetOrigin protowire.Number = 2
	fieldGetI      protowire.Number = 3
	fieldGetJ      protowire.Number = 4
	fieldGetCount  protowire.Number = 5
	fieldGetDI     protowire.Number = 6
	fieldGetDJ     protowire.Number = 7
)

type getRequest struct {
	Window uint32
	Origin int64
	I      int64
	J      int64
	Count  int64
	DI     int64
	DJ     int64
}

func (m *getRequest) appendWire(b []byte) []byte {
	b = appendUint(b, fieldGetWindow, uint64(m.Window))
	b = appendInt(b, fieldGetOrigin, m.Origin)
	b = appendInt(b, fieldGetI, m.I)
	b = appendInt(b, fieldGetJ, m.J)
	b = appendInt(b, fieldGetCount, m.Count)
	b = appendInt(b, fieldGetDI, m.DI)
	return appendInt(b, fieldGetDJ, m.DJ)
}

func (m *getRequest) parseWire(b []byte) error {
	*m = getRequest{}
	return parseFields(b, func(num protowire.Number, v uint64, _ []byte) {
		switch num {
		case fieldGetWindow:
			m.Window = uint32(v)
		case fieldGetOrigin:
			m.Origin = protowire.DecodeZigZag(v)
		case fieldGetI:
			m.I = protowire.DecodeZigZag(v)
		case fieldGetJ:
			m.J = protowire.DecodeZigZag(v)
		case fieldGetCount:
			m.Count = protowire.DecodeZigZag(v)
		case fieldGetDI:
			m.DI = protowire.DecodeZigZag(v)
		case fieldGetDJ:
			m.DJ = protowire.DecodeZigZag(v)
		}
	})
}

const fieldGetValues protowire.Number = 1

type getResponse struct {
	Values []float64
}

func (m *getResponse) appendWire(b []byte) []byte {
	return appendDoubles(b, fieldGetValues, m.Values)
}

func (m *getResponse) parseWire(b []byte) error {
	*m = getResponse{}
	var perr error
	err := parseFields(b, func(num protowire.Number, _ uint64, raw []byte) {
		if num == fieldGetValues && perr == nil {
			m.Values, perr = parseDoubles(raw)
		}
	})
	return errors.Join(err, perr)
}

// signalRequest fields.
const (
	fieldSignalKind   protowire.Number = 1
	fieldSignalWindow protowire.Number = 2
	fieldSignalFrom   protowire.Number = 3
	fieldSignalRound  protowire.Number = 4
	fieldSignalValues protowire.Number = 5
)

type signalRequest struct {
	Kind   uint32
	Window uint32
	From   int64
	Round  int64
	Values []float64
}

func (m *signalRequest) appendWire(b []byte) []byte {
	b = appendUint(b, fieldSignalKind, uint64(m.Kind))
	b = appendUint(b, fieldSignalWindow, uint64(m.Window))
	b = appendInt(b, fieldSignalFrom, m.From)
	b = appendInt(b, fieldSignalRound, m.Round)
	return appendDoubles(b, fieldSignalValues, m.Values)
}

func (m *signalRequest) parseWire(b []byte) error {
	*m = signalRequest{}
	var perr error
	err := parseFields(b, func(num protowire.Number, v uint64, raw []byte) {
		switch num {
		case fieldSignalKind:
			m.Kind = uint32(v)
		case fieldSignalWindow:
			m.Window = uint32(v)
		case fieldSignalFrom:
			m.From = protowire.DecodeZigZag(v)
		case fieldSignalRound:
			m.Round = protowire.DecodeZigZag(v)
		case fieldSignalValues:
			if perr == nil {
				m.Values, perr = parseDoubles(raw)
			}
		}
	})
	return errors.Join(err, perr)
}

type signalResponse struct{}

func (*signalResponse) appendWire(b []byte) []byte { return b }

func (*signalResponse) parseWire([]byte) error { return nil }

// Zero values are omitted, as proto3 does.
func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, protowire.EncodeZigZag(v))
}

// appendDoubles writes vs as a packed repeated double.
func appendDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func parseDoubles(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("rma codec: packed doubles length %d is not a multiple of 8", len(raw))
	}
	out := make([]float64, 0, len(raw)/8)
	for len(raw) > 0 {
		v, n := protowire.ConsumeFixed64(raw)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float64frombits(v))
		raw = raw[n:]
	}
	return out, nil
}

// parseFields walks b and hands every varint or length-delimited field to
// fn. Unknown fields are skipped.
func parseFields(b []byte, fn func(num protowire.Number, v uint64, raw []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("rma codec: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("rma codec: field %d: %w", num, protowire.ParseError(n))
			}
			fn(num, v, nil)
			b = b[n:]
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("rma codec: field %d: %w", num, protowire.ParseError(n))
			}
			fn(num, 0, raw)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("rma codec: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
