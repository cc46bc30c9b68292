package place

// Place is a single search hit. Name and Address are nil when the page did not
// expose them and serialize as JSON null.
type Place struct {
	Name    *string `json:"name"`
	Link    string  `json:"link"`
	Address *string `json:"address"`
}

// New builds a place with no address yet. When hasName is false the name stays
// nil instead of becoming "".
func New(name string, hasName bool, link string) Place {
	p := Place{Link: link}
	if hasName {
		p.Name = &name
	}
	return p
}

func (p *Place) SetAddress(address string) {
	p.Address = &address
}

func (p *Place) ClearAddress() {
	p.Address = nil
}

// DisplayName returns the name or a placeholder for log lines.
func (p Place) DisplayName() string {
	if p.Name == nil {
		return "<unnamed>"
	}
	return *p.Name
}
