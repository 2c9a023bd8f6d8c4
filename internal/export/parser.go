package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Timestamp layouts of the two export formats WhatsApp has shipped.
// The bracketed format carries seconds, the dash format does not.
const (
	bracketTimeLayout = "1/2/06, 3:04:05 PM"
	dashTimeLayout    = "1/2/06, 3:04 PM"
)

// System notices that only appear in one of the two formats. They are
// dropped during parsing so that exports of the same chat from
// different phones still line up message for message.
const (
	bracketEncryptionNotice = "Messages to this group are now secured with end-to-end encryption."
	dashEncryptionNotice    = "Messages and calls are end-to-end encrypted. Only people in this chat can read, listen to, or share them. Learn more."
)

const maxLineSize = 1024 * 1024

type parser struct {
	records []Record
	// senders in first-seen order, for deterministic prefix matching.
	senders   []string
	senderSet map[string]struct{}
	mediaDir  string
	dirFiles  map[string]struct{}
}

// Parse reads a WhatsApp chat export at path, resolving attachment
// paths against mediaDir when it is non-empty. Two export formats are
// supported and detected from the first non-empty line: lines starting
// with a bracketed timestamp ("[1/2/23, 4:05:06 PM] ...") and lines
// with a dash-separated timestamp ("1/2/23, 4:05 PM - ...").
func Parse(path, mediaDir, name string) (*Chat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	p := &parser{
		senderSet: make(map[string]struct{}),
		mediaDir:  mediaDir,
		dirFiles:  listDirFiles(mediaDir),
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	first := true
	bracketed := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		l := strings.ReplaceAll(strings.TrimSpace(sc.Text()), "‎", "")
		if strings.TrimSpace(l) == "" {
			continue
		}
		if first {
			bracketed = strings.HasPrefix(l, "[")
			first = false
		}
		if bracketed {
			err = p.parseBracketLine(l)
		} else {
			err = p.parseDashLine(l)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	// System records often start with a participant's name. Attribute
	// the ones that were parsed before that participant first spoke.
	for i, r := range p.records {
		if r.Kind == KindSystem && r.Sender == "" {
			if s, ok := p.matchSender(r.Text); ok {
				p.records[i].Sender = s
			}
		}
	}

	chat := &Chat{Name: name, Records: p.records}
	if mediaDir != "" {
		chat.Directories = []string{mediaDir}
	}
	return chat, nil
}

// parseBracketLine handles the "[1/2/23, 4:05:06 PM] Sender: body" format.
func (p *parser) parseBracketLine(l string) error {
	if !strings.HasPrefix(l, "[") {
		// Continuation of the previous text record.
		p.appendToLastText(l)
		return nil
	}
	timeEnd := strings.Index(l, "] ")
	if timeEnd < 0 {
		return fmt.Errorf("missing timestamp terminator")
	}
	ts, err := time.Parse(bracketTimeLayout, l[1:timeEnd])
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	rest := l[timeEnd+2:]

	colon := strings.Index(rest, ": ")
	if colon < 0 {
		// No sender separator, so it is a system record. Group icon
		// changes are absent from dash-format exports and would break
		// alignment between exports, so drop them here too.
		if strings.HasSuffix(rest, "icon") {
			return nil
		}
		p.pushSystem(ts, rest)
		return nil
	}

	sender := rest[:colon]
	p.addSender(sender)

	if att := strings.Index(l, "<attached: "); att >= 0 {
		fileName := l[att+len("<attached: ") : len(l)-1]
		p.records = append(p.records, Record{
			Timestamp: ts,
			Sender:    sender,
			Kind:      KindMedia,
			Media: &Media{
				Type: ClassifyMedia(fileName),
				Path: p.resolvePath(fileName),
			},
		})
		return nil
	}

	body := rest[colon+2:]
	if body == bracketEncryptionNotice {
		return nil
	}
	p.records = append(p.records, Record{
		Timestamp: ts,
		Sender:    sender,
		Kind:      KindText,
		Text:      body,
	})
	return nil
}

// parseDashLine handles the "1/2/23, 4:05 PM - Sender: body" format.
func (p *parser) parseDashLine(l string) error {
	dash := strings.Index(l, "M - ")
	if dash < 0 {
		// Continuation of the previous record. Text grows its body,
		// media grows (or gains) its caption.
		p.appendToLastTextOrCaption(l)
		return nil
	}
	if dash > 19 {
		// An "M - " that far into the line is message content, not a
		// timestamp.
		p.appendToLastText(l)
		return nil
	}
	ts, err := time.Parse(dashTimeLayout, l[:dash+1])
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	rest := l[dash+4:]

	colon := strings.Index(rest, ": ")
	if colon < 0 {
		if rest == dashEncryptionNotice {
			return nil
		}
		p.pushSystem(ts, rest)
		return nil
	}

	sender := rest[:colon]
	p.addSender(sender)

	switch {
	case strings.Contains(l, "<Media omitted>"):
		p.records = append(p.records, Record{
			Timestamp: ts,
			Sender:    sender,
			Kind:      KindMedia,
			Media:     &Media{Type: MediaOther},
		})
	case strings.HasSuffix(l, "(file attached)"):
		fileName := rest[colon+2 : len(rest)-len(" (file attached)")]
		p.records = append(p.records, Record{
			Timestamp: ts,
			Sender:    sender,
			Kind:      KindMedia,
			Media: &Media{
				Type: ClassifyMedia(fileName),
				Path: p.resolvePath(fileName),
			},
		})
	default:
		body := rest[colon+2:]
		if strings.TrimSpace(body) == "null" {
			return nil
		}
		p.records = append(p.records, Record{
			Timestamp: ts,
			Sender:    sender,
			Kind:      KindText,
			Text:      body,
		})
	}
	return nil
}

func (p *parser) pushSystem(ts time.Time, body string) {
	sender, _ := p.matchSender(body)
	p.records = append(p.records, Record{
		Timestamp: ts,
		Sender:    sender,
		Kind:      KindSystem,
		Text:      body,
	})
}

func (p *parser) appendToLastText(l string) {
	if len(p.records) == 0 {
		return
	}
	last := &p.records[len(p.records)-1]
	if last.Kind == KindText {
		last.Text += "\n" + l
	}
}

func (p *parser) appendToLastTextOrCaption(l string) {
	if len(p.records) == 0 {
		return
	}
	last := &p.records[len(p.records)-1]
	switch last.Kind {
	case KindText:
		last.Text += "\n" + l
	case KindMedia:
		if last.Media.Caption == "" {
			last.Media.Caption = l
		} else {
			last.Media.Caption += "\n" + l
		}
	}
}

func (p *parser) addSender(s string) {
	if _, ok := p.senderSet[s]; ok {
		return
	}
	p.senderSet[s] = struct{}{}
	p.senders = append(p.senders, s)
}

// matchSender finds the participant whose name prefixes body. The
// longest match wins so "Ana Maria left" attributes to "Ana Maria",
// not "Ana".
func (p *parser) matchSender(body string) (string, bool) {
	best := ""
	for _, s := range p.senders {
		if strings.HasPrefix(body, s) && len(s) > len(best) {
			best = s
		}
	}
	return best, best != ""
}

func (p *parser) resolvePath(fileName string) string {
	if p.mediaDir == "" {
		return ""
	}
	if _, ok := p.dirFiles[fileName]; !ok {
		return ""
	}
	return filepath.Join(p.mediaDir, fileName)
}

func listDirFiles(dir string) map[string]struct{} {
	files := make(map[string]struct{})
	if dir == "" {
		return files
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, e := range entries {
		if !e.IsDir() {
			files[e.Name()] = struct{}{}
		}
	}
	return files
}
