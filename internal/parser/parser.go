// Package parser reads card files: plain text where "Q:" starts the front,
// "A:" the back and "T:" a space separated tag list. Blocks may span
// several lines, and "---" or a new "Q:" ends a card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/ankicol/internal/domain"
)

const (
	frontPrefix = "Q:"
	backPrefix  = "A:"
	tagsPrefix  = "T:"
	separator   = "---"
)

type state int

const (
	seeking state = iota
	readingFront
	readingBack
	readingTags
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Content, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards without a
// front are dropped.
func Parse(r io.Reader) ([]domain.Content, error) {
	p := &cardParser{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		p.line(scanner.Text())
	}
	p.finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.cards, nil
}

type cardParser struct {
	cards   []domain.Content
	current domain.Content
	block   []string
	state   state
}

func (p *cardParser) line(line string) {
	if line == separator {
		p.finishCard()
		return
	}

	next, rest, ok := prefixed(line)
	if !ok {
		if p.state != seeking {
			p.block = append(p.block, line)
		}
		return
	}

	p.flushBlock()
	if next == readingFront && p.state != seeking {
		// A new question always starts a new card
		p.finishCard()
	}
	p.state = next
	p.block = append(p.block, rest)
}

func prefixed(line string) (state, string, bool) {
	for _, c := range []struct {
		prefix string
		state  state
	}{
		{frontPrefix, readingFront},
		{backPrefix, readingBack},
		{tagsPrefix, readingTags},
	} {
		if rest, ok := strings.CutPrefix(line, c.prefix); ok {
			return c.state, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}

func (p *cardParser) flushBlock() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(p.block, "\n"), "\n")
	switch p.state {
	case readingFront:
		p.current.Front = content
	case readingBack:
		p.current.Back = content
	case readingTags:
		p.current.Tags = append(p.current.Tags, strings.Fields(content)...)
	}
	p.block = nil
}

func (p *cardParser) finishCard() {
	p.flushBlock()
	if p.current.Front != "" {
		p.cards = append(p.cards, p.current)
	}
	p.current = domain.Content{}
	p.state = seeking
}
