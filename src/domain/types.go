package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// BuildInfo is filled in by the linker at build time.
var BuildInfo buildInfo

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Flag is a bool stored as NUMBER(1) because Oracle has no boolean column type.
type Flag bool

func (self *Flag) Scan(value interface{}) error {
	switch v := value.(type) {
	case bool:
		*self = Flag(v)
	case int64:
		*self = v != 0
	case float64:
		*self = v != 0
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*self = parsed != 0
	case []byte:
		return self.Scan(string(v))
	default:
		return fmt.Errorf("Cannot scan %T into Flag", value)
	}
	return nil
}

func (self Flag) Value() (driver.Value, error) {
	if self {
		return int64(1), nil
	}
	return int64(0), nil
}
