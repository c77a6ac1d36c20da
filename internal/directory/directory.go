// Package directory serves the categorised list of useful phone numbers.
package directory

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

//go:embed contacts.json
var defaultContacts []byte

type Contact struct {
	Name     string `json:"nome"`
	Number   string `json:"numero"`
	Tel      string `json:"tel"`
	WhatsApp string `json:"whatsapp"`
}

type Section struct {
	Category string    `json:"categoria"`
	Contacts []Contact `json:"contatti"`
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// TelLink returns the "tel:" URI for number with whitespace removed.
func TelLink(number string) string {
	return "tel:" + stripSpace(number)
}

// WhatsAppLink returns the wa.me link for an Italian number.
func WhatsAppLink(number string) string {
	return "https://wa.me/39" + stripSpace(number)
}

// Parse decodes a JSON section list and fills in the links.
func Parse(data []byte) ([]Section, error) {
	var sections []Section
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	for i := range sections {
		for j := range sections[i].Contacts {
			c := &sections[i].Contacts[j]
			c.Tel = TelLink(c.Number)
			c.WhatsApp = WhatsAppLink(c.Number)
		}
	}
	return sections, nil
}

// Load reads the list from path, or the built-in list when path is empty.
func Load(path string) ([]Section, error) {
	if path == "" {
		return Parse(defaultContacts)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	return Parse(data)
}
