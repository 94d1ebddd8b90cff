package docfill

import (
	"regexp"
	"strings"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

// TokenType represents the type of a placeholder token
type TokenType int

const (
	// TokenValue is a single-value placeholder: {Name}
	TokenValue TokenType = iota
	// TokenLoopStart opens a loop region: {#items}
	TokenLoopStart
	// TokenLoopEnd closes a loop region: {/items} or {/}
	TokenLoopEnd
	// tokenDrop marks a loop marker that is cut from the output.
	tokenDrop
)

// Token represents a placeholder found in document text
type Token struct {
	Type TokenType
	Name string

	// Raw is the token as written, braces included.
	Raw string

	// Start and End are byte offsets in the document markup.
	Start int
	End   int

	// para and row are indices of the enclosing w:p and w:tr in the scan
	// tree, or -1.
	para int
	row  int

	// sole is set when the token is the only text of its paragraph.
	sole bool
}

var (
	// Regular expression to match placeholder tokens in text content
	tokenRegex = regexp.MustCompile(`\{([^{}<>]*)\}`)
	nameRegex  = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_.]*$`)
)

// parseToken determines the type of token from the content between braces.
// ok is false for brace pairs that are not placeholders.
func parseToken(content string) (tok Token, ok bool) {
	content = strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(content, "#"):
		name := strings.TrimSpace(content[1:])
		return Token{Type: TokenLoopStart, Name: name}, nameRegex.MatchString(name)
	case strings.HasPrefix(content, "/"):
		name := strings.TrimSpace(content[1:])
		return Token{Type: TokenLoopEnd, Name: name}, name == "" || nameRegex.MatchString(name)
	default:
		return Token{Type: TokenValue, Name: content}, nameRegex.MatchString(content)
	}
}

// Tokenize finds placeholder tokens in a run of text. Offsets are relative
// to base.
func Tokenize(text string, base int) []Token {
	var tokens []Token
	for _, m := range tokenRegex.FindAllStringSubmatchIndex(text, -1) {
		tok, ok := parseToken(text[m[2]:m[3]])
		if !ok {
			continue
		}
		tok.Raw = text[m[0]:m[1]]
		tok.Start = base + m[0]
		tok.End = base + m[1]
		tokens = append(tokens, tok)
	}
	return tokens
}

// collectTokens scans doc and returns every token inside w:t text along
// with the structural context the binder needs.
func collectTokens(doc string) ([]Token, *wordml.Tree, error) {
	tree, err := wordml.Scan(doc)
	if err != nil {
		return nil, nil, err
	}

	paraText := make(map[int]*strings.Builder)
	var tokens []Token

	for i, el := range tree.Elements {
		if el.Name != "w:t" || el.SelfClosing() {
			continue
		}
		text := doc[el.ContentStart:el.ContentEnd]
		para := tree.Ancestor(i, "w:p")
		if para >= 0 {
			b, ok := paraText[para]
			if !ok {
				b = &strings.Builder{}
				paraText[para] = b
			}
			b.WriteString(text)
		}
		row := tree.Ancestor(i, "w:tr")
		for _, tok := range Tokenize(text, el.ContentStart) {
			tok.para = para
			tok.row = row
			tokens = append(tokens, tok)
		}
	}

	for i := range tokens {
		if b, ok := paraText[tokens[i].para]; ok {
			tokens[i].sole = strings.TrimSpace(b.String()) == tokens[i].Raw
		}
	}

	return tokens, tree, nil
}
