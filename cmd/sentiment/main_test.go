package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"linpredict/sentiment"
)

func TestRun(t *testing.T) {
	var out bytes.Buffer
	ok := run(sentiment.NewLexiconAnalyzer(), "I love this product! It's amazing.", &out)
	assert.True(t, ok)
	assert.Equal(t, "Sentiment: Positive\nText: I love this product! It's amazing.\n", out.String())

	out.Reset()
	assert.False(t, run(sentiment.NewLexiconAnalyzer(), "  ", &out))
	assert.Equal(t, sentiment.ErrEmptyText.Error()+"\n", out.String())
}

func TestMessage(t *testing.T) {
	msg := message(&sentiment.TransportError{Endpoint: "http://127.0.0.1:5000/analyze"})
	assert.Equal(t, "Error: could not connect to the server at http://127.0.0.1:5000/analyze", msg)
	assert.Equal(t, sentiment.ErrTextTooShort.Error(), message(sentiment.ErrTextTooShort))
}
