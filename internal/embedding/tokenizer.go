package embedding

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error)
}

const (
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	padToken = "[PAD]"
)

// BertTokenizer is the uncased BERT WordPiece pipeline used by all-MiniLM-L6-v2:
// clean, lowercase, strip accents, split on whitespace and punctuation, then
// greedy longest-match WordPiece against the model's vocab.txt.
type BertTokenizer struct {
	tk    *tokenizer.Tokenizer
	sepID int64
	padID int64
}

// NewBertTokenizer loads a WordPiece vocabulary (one token per line, line number is the id).
func NewBertTokenizer(vocabPath string) (*BertTokenizer, error) {
	model, err := wordpiece.NewWordPieceFromFile(vocabPath, unkToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary %s: %w", vocabPath, err)
	}
	tk := tokenizer.NewTokenizer(model)
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	clsID, ok := tk.TokenToId(clsToken)
	if !ok {
		return nil, fmt.Errorf("vocabulary %s has no %s token", vocabPath, clsToken)
	}
	sepID, ok := tk.TokenToId(sepToken)
	if !ok {
		return nil, fmt.Errorf("vocabulary %s has no %s token", vocabPath, sepToken)
	}
	padID, ok := tk.TokenToId(padToken)
	if !ok {
		padID = 0
	}
	tk.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Id: sepID, Value: sepToken},
		processor.PostToken{Id: clsID, Value: clsToken},
	))

	return &BertTokenizer{tk: tk, sepID: int64(sepID), padID: int64(padID)}, nil
}

// Tokenize produces [CLS] pieces... [SEP], truncated and padded to maxTokens.
func (t *BertTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	enc, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := enc.Ids
	if len(ids) > maxTokens {
		ids = ids[:maxTokens]
		ids[maxTokens-1] = int(t.sepID)
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		if i < len(ids) {
			inputIDs[i] = int64(ids[i])
			attentionMask[i] = 1
			continue
		}
		inputIDs[i] = t.padID
	}
	return inputIDs, attentionMask, tokenTypeIDs, nil
}
