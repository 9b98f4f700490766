package diag

import "fmt"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// MarshalText keeps reports readable: "error", "warning", "info".
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SevInfo:
		return []byte("info"), nil
	case SevWarning:
		return []byte("warning"), nil
	case SevError:
		return []byte("error"), nil
	}
	return nil, fmt.Errorf("unknown severity %d", s)
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity accepts the names produced by String and MarshalText.
func ParseSeverity(v string) (Severity, error) {
	switch v {
	case "info", "INFO", "note", "help":
		return SevInfo, nil
	case "warning", "WARNING", "warn":
		return SevWarning, nil
	case "error", "ERROR":
		return SevError, nil
	}
	return SevInfo, fmt.Errorf("unknown severity %q", v)
}
