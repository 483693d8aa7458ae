package prompt

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hyperjump/nursesim/pkg/utils"
)

// TokenCounter counts the tokens of a prompt.
type TokenCounter interface {
	Count(text string) int
}

// RuneCounter counts one token per rune. It overestimates for most text and
// needs no encoding data.
type RuneCounter struct{}

// Count returns the rune count of text.
func (RuneCounter) Count(text string) int {
	return utf8.RuneCountInString(text)
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// NewTiktokenCounter loads the named BPE encoding (for example cl100k_base).
func NewTiktokenCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %s: %w", encoding, err)
	}
	return tiktokenCounter{enc: enc}, nil
}

// TokenLimiter caps prompt size. Text over the token limit is cut to that
// many characters.
type TokenLimiter struct {
	max     int
	counter TokenCounter
}

// NewTokenLimiter returns a limiter for limit tokens. A nil counter counts runes.
// limit <= 0 disables the cap.
func NewTokenLimiter(limit int, counter TokenCounter) *TokenLimiter {
	if counter == nil {
		counter = RuneCounter{}
	}
	return &TokenLimiter{max: limit, counter: counter}
}

// Fit returns text unchanged when it fits, otherwise its first max characters.
func (l *TokenLimiter) Fit(text string) string {
	if l == nil || l.max <= 0 {
		return text
	}
	if l.counter.Count(text) <= l.max {
		return text
	}
	return utils.CutRunes(text, l.max)
}

// Max returns the token limit.
func (l *TokenLimiter) Max() int {
	return l.max
}
