package id

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUID generates a UUID v4 (random).
func UUID() string {
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Counter renders n as a record id.
func Counter(n int) string {
	return strconv.Itoa(n)
}

// ParseCounter returns the integer value of a counter id.
// ok is false for anything that is not a positive decimal integer.
func ParseCounter(s string) (n int, ok bool) {
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Letters renders n (1-based) as a lowercase bijective base-26 sequence:
// 1 -> "a", 26 -> "z", 27 -> "aa".
func Letters(n int) string {
	if n <= 0 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append(b, byte('a'+n%26))
		n /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// ParseLetters is the inverse of Letters.
func ParseLetters(s string) (n int, ok bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'a' || c > 'z' {
			return 0, false
		}
		n = n*26 + int(c-'a'+1)
	}
	return n, true
}

// --- ULID Implementation ---
// 26 characters, time-sortable, collision-free

// ulidEncoding uses Crockford's Base32 (excludes I, L, O, U to avoid ambiguity)
const ulidEncoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDSource generates ULIDs that are strictly increasing within the
// same millisecond. Each identity manager owns its own source so that
// separate server instances never share generator state.
type ULIDSource struct {
	mu      sync.Mutex
	lastMs  int64
	counter uint16
}

// Next returns a new ULID.
func (s *ULIDSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now == s.lastMs {
		s.counter++
		if s.counter == 0 {
			// Counter overflow, wait for next millisecond
			for now == s.lastMs {
				time.Sleep(time.Millisecond)
				now = time.Now().UnixMilli()
			}
			s.lastMs = now
		}
	} else {
		s.lastMs = now
		s.counter = 0
	}

	return encodeULID(now, s.counter)
}

// encodeULID packs a 48-bit timestamp and 80 bits of randomness (with the
// counter mixed into the first two random bytes) into 26 characters.
func encodeULID(ms int64, counter uint16) string {
	var raw [16]byte
	for i := 5; i >= 0; i-- {
		raw[i] = byte(ms)
		ms >>= 8
	}
	_, _ = rand.Read(raw[6:])
	raw[6] = byte(counter >> 8)
	raw[7] = byte(counter)

	// 128 bits -> 26 base32 characters, most significant bits first.
	// The first character carries only the top 3 bits.
	out := make([]byte, 26)
	var acc uint32
	bits := 2 // pad so 128 bits become 130 = 26*5
	idx := 0
	for _, b := range raw {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[idx] = ulidEncoding[(acc>>uint(bits))&0x1F]
			idx++
		}
	}
	return string(out)
}

// IsValidULID checks if a string is a valid ULID.
func IsValidULID(s string) bool {
	if len(s) != 26 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(ulidEncoding, s[i]) < 0 {
			return false
		}
	}
	return s[0] <= '7'
}

// ULIDTime extracts the timestamp from a ULID.
func ULIDTime(ulid string) (time.Time, error) {
	if !IsValidULID(ulid) {
		return time.Time{}, fmt.Errorf("invalid ULID: %s", ulid)
	}

	var ms int64
	for i := 0; i < 10; i++ {
		ms = (ms << 5) | int64(strings.IndexByte(ulidEncoding, ulid[i]))
	}
	return time.UnixMilli(ms), nil
}
