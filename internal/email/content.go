package email

// Content kinds understood by the couriers in this module.
const (
	KindSimple    = "simple"
	KindTemplated = "templated"
	KindEmpty     = "empty"
)

// Content is the body of an email. The variants defined here are
// SimpleContent, TemplatedContent and EmptyContent; couriers reject any other
// implementation.
type Content interface {
	Kind() string
}

// SimpleContent carries literal html and/or text bodies. A nil body is
// absent; an empty string is a present, empty body.
type SimpleContent struct {
	HTML *string
	Text *string
}

// HTMLContent returns simple content with an html body.
func HTMLContent(html string) SimpleContent {
	return SimpleContent{HTML: &html}
}

// TextContent returns simple content with a text body.
func TextContent(text string) SimpleContent {
	return SimpleContent{Text: &text}
}

// WithHTML returns a copy of c with the html body set.
func (c SimpleContent) WithHTML(html string) SimpleContent {
	c.HTML = &html
	return c
}

// WithText returns a copy of c with the text body set.
func (c SimpleContent) WithText(text string) SimpleContent {
	c.Text = &text
	return c
}

func (SimpleContent) Kind() string { return KindSimple }

// TemplatedContent refers to a template stored at the provider, along with
// the variables used to render it.
type TemplatedContent struct {
	TemplateID string
	Data       map[string]any
}

// Templated returns templated content for the given template id.
func Templated(templateID string, data map[string]any) TemplatedContent {
	return TemplatedContent{TemplateID: templateID, Data: data}
}

func (TemplatedContent) Kind() string { return KindTemplated }

// EmptyContent is an email without a body.
type EmptyContent struct{}

func (EmptyContent) Kind() string { return KindEmpty }
