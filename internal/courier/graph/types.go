package graph

// sendMailRequest is the body of POST /users/{id}/sendMail.
type sendMailRequest struct {
	Message         message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

type message struct {
	Subject                string           `json:"subject"`
	Body                   itemBody         `json:"body"`
	From                   *recipient       `json:"from,omitempty"`
	ToRecipients           []recipient      `json:"toRecipients"`
	CcRecipients           []recipient      `json:"ccRecipients,omitempty"`
	BccRecipients          []recipient      `json:"bccRecipients,omitempty"`
	ReplyTo                []recipient      `json:"replyTo,omitempty"`
	Attachments            []fileAttachment `json:"attachments,omitempty"`
	InternetMessageHeaders []messageHeader  `json:"internetMessageHeaders,omitempty"`
}

// itemBody holds the message body; ContentType is "text" or "html".
type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	ContentID    string `json:"contentId,omitempty"`
	IsInline     bool   `json:"isInline,omitempty"`
}

type messageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// errorResponse is the error envelope returned by the Graph API.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
