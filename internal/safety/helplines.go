package safety

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCountryCode is the mandatory fallback key in every helpline table.
const DefaultCountryCode = "DEFAULT"

// HelplineEntry is one crisis-support contact for a country.
type HelplineEntry struct {
	Name             string `yaml:"name"`
	Phone            string `yaml:"phone,omitempty"`
	Website          string `yaml:"website,omitempty"`
	TextTo           string `yaml:"text_to,omitempty"`
	TextMessage      string `yaml:"text_message,omitempty"`
	ShortDescription string `yaml:"short_description"`
}

// HelplineTable maps an ISO2 country code (or DEFAULT) to an ordered list
// of helpline entries.
type HelplineTable map[string][]HelplineEntry

// DefaultHelplineTable is the compiled-in contact table.
var DefaultHelplineTable = HelplineTable{
	DefaultCountryCode: {
		{Name: "Child Helpline International", Website: "https://childhelplineinternational.org", ShortDescription: "Find a free, confidential helpline in your country"},
		{Name: "Your local emergency number", ShortDescription: "If you are in immediate danger, call your local emergency services"},
	},
	"US": {
		{Name: "988 Suicide & Crisis Lifeline", Phone: "988", Website: "https://988lifeline.org", ShortDescription: "Free, confidential support 24/7"},
		{Name: "Crisis Text Line", TextTo: "741741", TextMessage: "HOME", ShortDescription: "Text with a trained crisis counselor"},
	},
	"GB": {
		{Name: "Childline", Phone: "0800 1111", Website: "https://www.childline.org.uk", ShortDescription: "Free, private support for under-19s"},
		{Name: "Samaritans", Phone: "116 123", Website: "https://www.samaritans.org", ShortDescription: "Whatever you're going through, 24/7"},
	},
	"FR": {
		{Name: "3114 - Numero national de prevention du suicide", Phone: "3114", Website: "https://3114.fr", ShortDescription: "Ecoute professionnelle, gratuite, 24h/24"},
		{Name: "Fil Sante Jeunes", Phone: "0800 235 236", Website: "https://www.filsantejeunes.com", ShortDescription: "Ecoute anonyme pour les 12-25 ans"},
	},
	"DE": {
		{Name: "Nummer gegen Kummer", Phone: "116 111", Website: "https://www.nummergegenkummer.de", ShortDescription: "Kostenlose Beratung fuer Kinder und Jugendliche"},
		{Name: "TelefonSeelsorge", Phone: "0800 111 0 111", Website: "https://www.telefonseelsorge.de", ShortDescription: "Anonyme Beratung rund um die Uhr"},
	},
	"AU": {
		{Name: "Kids Helpline", Phone: "1800 55 1800", Website: "https://kidshelpline.com.au", ShortDescription: "Free confidential counselling for 5-25 year olds"},
		{Name: "Lifeline", Phone: "13 11 14", Website: "https://www.lifeline.org.au", ShortDescription: "24-hour crisis support"},
	},
	"CA": {
		{Name: "Kids Help Phone", Phone: "1-800-668-6868", TextTo: "686868", TextMessage: "CONNECT", Website: "https://kidshelpphone.ca", ShortDescription: "24/7 support for young people"},
		{Name: "9-8-8 Suicide Crisis Helpline", Phone: "988", ShortDescription: "Call or text 988 any time"},
	},
}

// Registry resolves country codes to helpline contacts.
type Registry struct {
	table HelplineTable
}

// NewRegistry validates the table and wraps it. A missing DEFAULT entry is
// a startup error: the fail-open advice path depends on it.
func NewRegistry(table HelplineTable) (*Registry, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("helpline table is empty")
	}
	if len(table[DefaultCountryCode]) == 0 {
		return nil, fmt.Errorf("helpline table is missing the %s entry", DefaultCountryCode)
	}
	return &Registry{table: table}, nil
}

// Resolve returns the effective country code and its helpline entries.
// Empty or unknown codes fall back to DEFAULT.
func (r *Registry) Resolve(countryCode string) (string, []HelplineEntry) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		code = DefaultCountryCode
	}
	entries, ok := r.table[code]
	if !ok || len(entries) == 0 {
		code = DefaultCountryCode
		entries = r.table[DefaultCountryCode]
	}
	return code, entries
}

// LoadHelplineTable reads a helpline table override from a YAML file, or
// returns the compiled-in default when path is empty.
func LoadHelplineTable(path string) (HelplineTable, error) {
	if path == "" {
		return DefaultHelplineTable, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read helpline table: %w", err)
	}

	var table HelplineTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to decode helpline table: %w", err)
	}
	return table, nil
}
