package email

import (
	"net/mail"
	"strings"
)

type Message struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}

// normalize trims every field, drops blank recipients and checks that the
// message can be sent.
func (m Message) normalize() (Message, error) {
	var err error
	if m.To, err = addrList("to", m.To); err != nil {
		return m, err
	}
	if m.CC, err = addrList("cc", m.CC); err != nil {
		return m, err
	}
	if m.BCC, err = addrList("bcc", m.BCC); err != nil {
		return m, err
	}
	if len(m.To)+len(m.CC)+len(m.BCC) == 0 {
		return m, invalidf("recipients", "are empty")
	}

	m.Subject = strings.TrimSpace(m.Subject)
	if m.Subject == "" {
		return m, invalidf("subject", "is empty")
	}
	if strings.TrimSpace(m.TextBody) == "" && strings.TrimSpace(m.HTMLBody) == "" {
		return m, invalidf("body", "is empty")
	}
	return m, nil
}

func addrList(field string, in []string) ([]string, error) {
	out := in[:0:0]
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, err := mail.ParseAddress(a); err != nil {
			return nil, invalidf(field, "has a bad address "+a)
		}
		out = append(out, a)
	}
	return out, nil
}
