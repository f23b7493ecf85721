package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shineum/courier/internal/email"
	"github.com/shineum/courier/internal/parser"
)

// messageFile is the YAML shape of a message passed with -message.
type messageFile struct {
	Subject     string            `yaml:"subject"`
	From        addressFile       `yaml:"from"`
	To          []addressFile     `yaml:"to"`
	Cc          []addressFile     `yaml:"cc"`
	Bcc         []addressFile     `yaml:"bcc"`
	ReplyTo     []addressFile     `yaml:"reply_to"`
	HTML        *string           `yaml:"html"`
	Text        *string           `yaml:"text"`
	Template    *templateFile     `yaml:"template"`
	Attachments []attachmentFile  `yaml:"attachments"`
	Headers     map[string]string `yaml:"headers"`
}

// addressFile accepts either a bare address string or an email/name mapping.
type addressFile struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

func (a *addressFile) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Email = node.Value
		return nil
	}
	type plain addressFile
	return node.Decode((*plain)(a))
}

type templateFile struct {
	ID   string         `yaml:"id"`
	Data map[string]any `yaml:"data"`
}

type attachmentFile struct {
	Path        string `yaml:"path"`
	Name        string `yaml:"name"`
	ContentID   string `yaml:"content_id"`
	Charset     string `yaml:"charset"`
	ContentType string `yaml:"content_type"`
}

// loadMessage reads a YAML message file and builds a validated email.
// Relative attachment paths resolve against the message file's directory.
func loadMessage(path string) (*email.Email, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}

	var mf messageFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse message file: %w", err)
	}

	msg, err := mf.toEmail(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// loadEML reads an RFC 5322 message file and builds a validated email.
func loadEML(path string) (*email.Email, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}

	msg, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (mf *messageFile) toEmail(baseDir string) (*email.Email, error) {
	content, err := mf.content()
	if err != nil {
		return nil, err
	}

	msg := &email.Email{
		Subject: mf.Subject,
		From:    email.Address{Email: mf.From.Email, Name: mf.From.Name},
		To:      addresses(mf.To),
		Cc:      addresses(mf.Cc),
		Bcc:     addresses(mf.Bcc),
		ReplyTo: addresses(mf.ReplyTo),
		Content: content,
		Headers: mf.Headers,
	}

	for _, a := range mf.Attachments {
		p := a.Path
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Path:        p,
			Name:        a.Name,
			ContentID:   a.ContentID,
			Charset:     a.Charset,
			ContentType: a.ContentType,
		})
	}

	return msg, nil
}

func (mf *messageFile) content() (email.Content, error) {
	hasBody := mf.HTML != nil || mf.Text != nil
	switch {
	case mf.Template != nil && hasBody:
		return nil, errors.New("message file sets both a template and a body")
	case mf.Template != nil:
		if mf.Template.ID == "" {
			return nil, errors.New("message file template requires an id")
		}
		return email.Templated(mf.Template.ID, mf.Template.Data), nil
	case hasBody:
		return email.SimpleContent{HTML: mf.HTML, Text: mf.Text}, nil
	default:
		return email.EmptyContent{}, nil
	}
}

func addresses(in []addressFile) []email.Address {
	if len(in) == 0 {
		return nil
	}
	out := make([]email.Address, 0, len(in))
	for _, a := range in {
		out = append(out, email.Address{Email: a.Email, Name: a.Name})
	}
	return out
}
