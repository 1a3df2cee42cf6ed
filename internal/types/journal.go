package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is the side of a journaled position.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionLong
	DirectionShort
)

// ParseDirection accepts "long"/"short" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return DirectionLong, nil
	case "short":
		return DirectionShort, nil
	default:
		return DirectionUnknown, fmt.Errorf("invalid direction %q: must be long or short", s)
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return ""
	}
}

// Valid reports whether d is LONG or SHORT.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown direction %d", d)
	}
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("direction must be a string: %w", err)
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the direction as its lowercase name.
func (d Direction) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot store unknown direction %d", d)
	}
	return d.String(), nil
}

func (d *Direction) Scan(src interface{}) error {
	s, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan direction: %w", err)
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TradeStatus is the lifecycle state of a trade. OPEN is initial, CLOSED is terminal.
type TradeStatus uint8

const (
	StatusUnknown TradeStatus = iota
	StatusOpen
	StatusClosed
)

func ParseTradeStatus(s string) (TradeStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StatusOpen, nil
	case "closed":
		return StatusClosed, nil
	default:
		return StatusUnknown, fmt.Errorf("invalid trade status %q: must be open or closed", s)
	}
}

func (s TradeStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return ""
	}
}

func (s TradeStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

func (s TradeStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown trade status %d", s)
	}
	return json.Marshal(s.String())
}

func (s *TradeStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	parsed, err := ParseTradeStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s TradeStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot store unknown trade status %d", s)
	}
	return s.String(), nil
}

func (s *TradeStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan trade status: %w", err)
	}
	parsed, err := ParseTradeStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func scanString(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("unexpected NULL")
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
