package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

func FormatFileSize(size float64, human bool) string {
	if size <= 0 {
		return "0"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	group := 0
	if human {
		group = int(math.Log10(size) / math.Log10(1024))
		group = max(0, min(group, len(units)-1))
	}
	return fmt.Sprintf("%.2f %s", size/math.Pow(1024, float64(group)), units[group])
}

// FormatNumber renders n with comma thousands separators.
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ReadString reads count bytes as text, dropping trailing NUL and space padding.
func ReadString(data []byte, count int, pos *int) string {
	if *pos+count > len(data) {
		count = max(len(data)-*pos, 0)
	}
	val := string(data[*pos : *pos+count])
	*pos += count
	return strings.TrimRight(val, "\x00 ")
}

// Uint16At and Uint32At read big-endian values at a fixed offset; out of
// range reads return ok=false.
func Uint16At(data []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(data) {
		return 0, false
	}
	return uint16(data[off])<<8 | uint16(data[off+1]), true
}

func Uint32At(data []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(data) {
		return 0, false
	}
	return uint32(data[off])<<24 | uint32(data[off+1])<<16 | uint32(data[off+2])<<8 | uint32(data[off+3]), true
}

func bcd(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

// DVDTime converts a 4 byte BCD playback time (hours, minutes, seconds,
// frame rate code + frames) into a duration.
func DVDTime(b []byte) time.Duration {
	if len(b) < 4 {
		return 0
	}
	d := time.Duration(bcd(b[0]))*time.Hour +
		time.Duration(bcd(b[1]))*time.Minute +
		time.Duration(bcd(b[2]))*time.Second
	frames := bcd(b[3] & 0x3f)
	switch b[3] >> 6 {
	case 1:
		d += time.Duration(frames) * time.Second / 25
	case 3:
		d += time.Duration(frames) * time.Second * 1001 / 30000
	}
	return d
}

func FormatDuration(d time.Duration, withMillis bool) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	if withMillis {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
