package marker

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CodeEntry is one known code.
type CodeEntry struct {
	ID   int
	Bits Bitmap
}

// Dictionary is the set of codes a survey may contain. Every entry has an
// all-zero quiet-zone ring, so the 20 border cells always agree.
type Dictionary struct {
	Name    string
	Entries []CodeEntry
}

// InnerBitmap builds a bitmap from the 16 inner cells packed into v, most
// significant bit first, reading rows top to bottom.
func InnerBitmap(v uint16) Bitmap {
	var b Bitmap
	bit := 15
	for r := 1; r < GridSize-1; r++ {
		for c := 1; c < GridSize-1; c++ {
			b[r][c] = uint8(v>>uint(bit)) & 1
			bit--
		}
	}
	return b
}

// Inner packs the 16 inner cells, the inverse of InnerBitmap.
func (b Bitmap) Inner() uint16 {
	var v uint16
	for r := 1; r < GridSize-1; r++ {
		for c := 1; c < GridSize-1; c++ {
			v = v<<1 | uint16(b[r][c]&1)
		}
	}
	return v
}

// NewDictionary validates entries and builds a dictionary.
func NewDictionary(name string, entries []CodeEntry) (*Dictionary, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("dictionary %q has no codes", name)
	}
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return nil, fmt.Errorf("dictionary %q: duplicate code id %d", name, e.ID)
		}
		seen[e.ID] = true
		for r := 0; r < GridSize; r++ {
			for c := 0; c < GridSize; c++ {
				v := e.Bits[r][c]
				if v > 1 {
					return nil, fmt.Errorf("dictionary %q: code %d has non-binary cell (%d,%d)=%d", name, e.ID, r, c, v)
				}
				if onBorder(r, c) && v != 0 {
					return nil, fmt.Errorf("dictionary %q: code %d has a set border cell (%d,%d)", name, e.ID, r, c)
				}
			}
		}
	}
	return &Dictionary{Name: name, Entries: entries}, nil
}

// Subset restricts the dictionary to the expected code ids, in the order
// given. An empty list returns the dictionary unchanged.
func (d *Dictionary) Subset(ids []int) (*Dictionary, error) {
	if len(ids) == 0 {
		return d, nil
	}
	byID := make(map[int]CodeEntry, len(d.Entries))
	for _, e := range d.Entries {
		byID[e.ID] = e
	}
	entries := make([]CodeEntry, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("dictionary %q has no code %d", d.Name, id)
		}
		entries = append(entries, e)
	}
	return NewDictionary(d.Name, entries)
}

type dictionaryFile struct {
	Name  string      `json:"name"`
	Codes []codeEntry `json:"codes"`
}

type codeEntry struct {
	ID    int     `json:"id"`
	Inner *uint16 `json:"inner,omitempty"`
	Bits  [][]int `json:"bits,omitempty"`
}

// ParseDictionary reads a JSON dictionary. Each code gives either "inner",
// the 16 inner bits as an integer, or "bits", the full 6x6 bitmap in reading
// orientation.
func ParseDictionary(r io.Reader) (*Dictionary, error) {
	var f dictionaryFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary JSON: %w", err)
	}
	entries := make([]CodeEntry, 0, len(f.Codes))
	for _, c := range f.Codes {
		switch {
		case c.Inner != nil && c.Bits != nil:
			return nil, fmt.Errorf("code %d: give either inner or bits, not both", c.ID)
		case c.Inner != nil:
			entries = append(entries, CodeEntry{ID: c.ID, Bits: InnerBitmap(*c.Inner)})
		case c.Bits != nil:
			if len(c.Bits) != GridSize {
				return nil, fmt.Errorf("code %d: expected %d rows, got %d", c.ID, GridSize, len(c.Bits))
			}
			var b Bitmap
			for r, row := range c.Bits {
				if len(row) != GridSize {
					return nil, fmt.Errorf("code %d row %d: expected %d cells, got %d", c.ID, r, GridSize, len(row))
				}
				for col, v := range row {
					if v < 0 || v > 1 {
						return nil, fmt.Errorf("code %d cell (%d,%d): expected 0 or 1, got %d", c.ID, r, col, v)
					}
					b[r][col] = uint8(v)
				}
			}
			entries = append(entries, CodeEntry{ID: c.ID, Bits: b})
		default:
			return nil, fmt.Errorf("code %d has neither inner nor bits", c.ID)
		}
	}
	return NewDictionary(f.Name, entries)
}

// LoadDictionary reads a JSON dictionary file.
func LoadDictionary(path string) (*Dictionary, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("dictionary file must have .json extension, got %q", ext)
	}
	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()
	return ParseDictionary(f)
}
