// Command textstats is a read-only aios tool plugin. Build with:
//
//	tinygo build -o textstats.wasm -target wasip1 -buildmode=c-shared .
package main

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/extism/go-pdk"
)

const defaultTop = 5

type statsInput struct {
	Text string `json:"text"`
	Top  int    `json:"top"`
}

type wordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type statsOutput struct {
	Lines      int         `json:"lines"`
	Words      int         `json:"words"`
	Characters int         `json:"characters"`
	TopWords   []wordCount `json:"top_words"`
}

type statsError struct {
	Error string `json:"error"`
}

//export handle
func handle() int32 {
	var req statsInput
	if err := json.Unmarshal(pdk.Input(), &req); err != nil {
		return outputError("invalid input: " + err.Error())
	}
	if req.Top <= 0 {
		req.Top = defaultTop
	}
	out, _ := json.Marshal(analyse(req.Text, req.Top))
	pdk.Output(out)
	return 0
}

func outputError(msg string) int32 {
	out, _ := json.Marshal(statsError{Error: msg})
	pdk.Output(out)
	return 1
}

func analyse(text string, top int) statsOutput {
	out := statsOutput{Characters: utf8.RuneCountInString(text)}
	if text != "" {
		out.Lines = strings.Count(text, "\n") + 1
		if strings.HasSuffix(text, "\n") {
			out.Lines--
		}
	}

	counts := map[string]int{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		out.Words++
		counts[strings.ToLower(w)]++
	}

	for w, n := range counts {
		out.TopWords = append(out.TopWords, wordCount{Word: w, Count: n})
	}
	sort.Slice(out.TopWords, func(i, j int) bool {
		if out.TopWords[i].Count != out.TopWords[j].Count {
			return out.TopWords[i].Count > out.TopWords[j].Count
		}
		return out.TopWords[i].Word < out.TopWords[j].Word
	})
	if len(out.TopWords) > top {
		out.TopWords = out.TopWords[:top]
	}
	return out
}

func main() {}
