package domain

import (
	"bufio"
	"io"
	"strings"
)

// ReadHikerList returns the hiker identifiers listed one per line in r.
// Surrounding whitespace is trimmed and blank lines are ignored.
func ReadHikerList(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
