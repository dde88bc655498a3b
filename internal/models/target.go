package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Target is the "which" of a roulette bet. Clients send it either as a
// number (straight-up 17, dozen 2) or as a word ("red", "even", "low").
// Numeric targets are kept in canonical decimal form.
type Target string

func (t Target) Int() (int, bool) {
	n, err := strconv.Atoi(string(t))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (t *Target) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Target(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return err
	}
	*t = Target(strconv.FormatInt(i, 10))
	return nil
}

func (t Target) MarshalJSON() ([]byte, error) {
	if n, ok := t.Int(); ok {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(string(t))
}
