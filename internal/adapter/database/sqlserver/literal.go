package sqlserver

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLiteralBase is extended with fractional digits from the column's scale
// and, for datetimeoffset, the zone offset. The value is rendered exactly as
// the driver returned it; no timezone conversion.
const timeLiteralBase = "2006-01-02 15:04:05"

// binaryTypes are the declared types whose []byte values are raw bytes and
// must be hex-encoded. The driver also returns decimals, money and GUIDs as
// []byte, which is why the declared type decides the encoding.
var binaryTypes = map[string]bool{
	"binary":     true,
	"varbinary":  true,
	"image":      true,
	"timestamp":  true,
	"rowversion": true,
}

// numericTypes render unquoted when the driver hands the value back as bytes.
var numericTypes = map[string]bool{
	"decimal":    true,
	"numeric":    true,
	"money":      true,
	"smallmoney": true,
	"bigint":     true,
	"int":        true,
	"smallint":   true,
	"tinyint":    true,
	"float":      true,
	"real":       true,
}

// EncodeLiteral maps one driver value and its declared column type to the
// exact SQL literal to embed in an INSERT statement. Unrecognized value types
// are rejected rather than emitted unescaped.
func EncodeLiteral(value any, col *ColumnDescriptor) (string, error) {
	if value == nil {
		return "NULL", nil
	}

	switch v := value.(type) {
	case string:
		return quoteString(v), nil
	case []byte:
		return encodeBytes(v, col)
	case time.Time:
		return encodeTime(v, col), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	default:
		return "", fmt.Errorf("unsupported value type %T for column [%s]", value, col.Name)
	}
}

// encodeTime renders the literal with as many fractional digits as the column
// declares. datetimeoffset keeps the driver's zone offset so the replayed
// value is the same instant at the same offset.
func encodeTime(v time.Time, col *ColumnDescriptor) string {
	layout := timeLiteralBase
	if scale := col.Scale; scale > 0 {
		if scale > 7 {
			scale = 7
		}
		layout += "." + strings.Repeat("0", scale)
	}
	if col.TypeName == "datetimeoffset" {
		layout += " -07:00"
	}
	return "'" + v.Format(layout) + "'"
}

func encodeBytes(v []byte, col *ColumnDescriptor) (string, error) {
	if binaryTypes[col.TypeName] {
		// There is no valid empty binary literal.
		if len(v) == 0 {
			return "NULL", nil
		}
		return "0x" + hex.EncodeToString(v), nil
	}
	if numericTypes[col.TypeName] {
		return string(v), nil
	}
	if col.TypeName == "uniqueidentifier" {
		return encodeGUID(v, col)
	}
	// Character and temporal values arriving as bytes are safe to emit as
	// escaped quoted literals.
	return quoteString(string(v)), nil
}

// encodeGUID renders the driver's raw 16 bytes in the canonical GUID form.
// The first three groups are stored little-endian.
func encodeGUID(v []byte, col *ColumnDescriptor) (string, error) {
	if len(v) != 16 {
		return "", fmt.Errorf("uniqueidentifier column [%s] returned %d bytes, want 16", col.Name, len(v))
	}
	return fmt.Sprintf("'%08X-%04X-%04X-%04X-%012X'",
		binary.LittleEndian.Uint32(v[0:4]),
		binary.LittleEndian.Uint16(v[4:6]),
		binary.LittleEndian.Uint16(v[6:8]),
		v[8:10], v[10:16]), nil
}

// quoteString doubles embedded single quotes; the engine's parser handles
// everything else.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
