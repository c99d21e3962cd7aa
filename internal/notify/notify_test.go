package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTransport struct {
	from, to string
	raw      []byte
	err      error
}

func (c *captureTransport) Deliver(_ context.Context, from, to string, raw []byte) error {
	c.from, c.to, c.raw = from, to, raw
	return c.err
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

type parsedMessage struct {
	header     mail.Header
	body       string
	attachName string
	attachment []byte
}

func parse(t *testing.T, raw []byte) parsedMessage {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	out := parsedMessage{header: msg.Header}
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)

		if strings.HasPrefix(p.Header.Get("Content-Type"), "text/plain") {
			out.body = string(data)
			continue
		}
		out.attachName = p.FileName()
		out.attachment, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(string(data), "\r\n", ""))
		require.NoError(t, err)
	}
	return out
}

func TestNotifierSend(t *testing.T) {
	msgPath := writeFile(t, "message.txt", []byte("Hi {name},\nYour ticket for {{ email }} is attached.\n"))
	ticket := make([]byte, 500)
	for i := range ticket {
		ticket[i] = byte(i)
	}
	ticketPath := writeFile(t, "id-1_ticket.png", ticket)

	tr := &captureTransport{}
	n := New(tr, Config{
		Sender:      "events@example.com",
		SenderName:  "Ignite Events",
		Subject:     "Your ticket",
		MessagePath: msgPath,
	})

	require.NoError(t, n.Send(context.Background(), "ana@example.com", "Ana", ticketPath))

	assert.Equal(t, "events@example.com", tr.from)
	assert.Equal(t, "ana@example.com", tr.to)

	m := parse(t, tr.raw)
	assert.Equal(t, "Your ticket", m.header.Get("Subject"))
	from, err := m.header.AddressList("From")
	require.NoError(t, err)
	assert.Equal(t, "Ignite Events", from[0].Name)
	assert.Equal(t, "events@example.com", from[0].Address)

	assert.Contains(t, m.body, "Hi Ana,")
	assert.Contains(t, m.body, "for ana@example.com is attached")
	assert.Equal(t, "id-1_ticket.png", m.attachName)
	assert.Equal(t, ticket, m.attachment)
}

func TestNotifierDefaultSubject(t *testing.T) {
	tr := &captureTransport{}
	n := New(tr, Config{
		Sender:      "events@example.com",
		MessagePath: writeFile(t, "m.txt", []byte("hello")),
	})
	require.NoError(t, n.Send(context.Background(), "a@example.com", "A", writeFile(t, "t.png", []byte("png"))))
	assert.Equal(t, "Your Event E-Ticket is Here!", parse(t, tr.raw).header.Get("Subject"))
}

func TestNotifierSendErrors(t *testing.T) {
	ticket := writeFile(t, "t.png", []byte("png"))
	msg := writeFile(t, "m.txt", []byte("hello {name}"))

	t.Run("missing template", func(t *testing.T) {
		n := New(&captureTransport{}, Config{MessagePath: filepath.Join(t.TempDir(), "absent.txt")})
		assert.Error(t, n.Send(context.Background(), "a@example.com", "A", ticket))
	})

	t.Run("missing ticket", func(t *testing.T) {
		n := New(&captureTransport{}, Config{MessagePath: msg})
		assert.Error(t, n.Send(context.Background(), "a@example.com", "A", filepath.Join(t.TempDir(), "none.png")))
	})

	t.Run("transport failure", func(t *testing.T) {
		boom := errors.New("rejected")
		n := New(&captureTransport{err: boom}, Config{MessagePath: msg})
		err := n.Send(context.Background(), "a@example.com", "A", ticket)
		assert.ErrorIs(t, err, boom)
	})
}

func TestBodyRereadsTemplate(t *testing.T) {
	path := writeFile(t, "m.txt", []byte("v1 {name}"))
	n := New(&captureTransport{}, Config{MessagePath: path})

	body, err := n.Body("Ana", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "v1 Ana", body)

	require.NoError(t, os.WriteFile(path, []byte("v2 {{ name }}"), 0o644))
	body, err = n.Body("Ana", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "v2 Ana", body)
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	raw, err := BuildMessage(Message{
		From:    mail.Address{Address: "from@example.com"},
		To:      mail.Address{Name: "José", Address: "jose@example.com"},
		Subject: "Entrada confirmada ✓",
		Body:    "Olá",
	})
	require.NoError(t, err)

	m := parse(t, raw)
	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(m.header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Entrada confirmada ✓", subject)
	assert.Equal(t, "Olá", m.body)
	assert.Nil(t, m.attachment)
}

func TestSESTransportDeliver(t *testing.T) {
	client := &fakeSES{}
	tr := NewSESTransport(client)

	require.NoError(t, tr.Deliver(context.Background(), "events@example.com", "ana@example.com", []byte("raw")))
	require.NotNil(t, client.in)
	assert.Equal(t, "events@example.com", aws.ToString(client.in.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, client.in.Destination.ToAddresses)
	assert.Equal(t, []byte("raw"), client.in.Content.Raw.Data)

	client.err = errors.New("throttled")
	assert.Error(t, tr.Deliver(context.Background(), "events@example.com", "ana@example.com", []byte("raw")))
}
