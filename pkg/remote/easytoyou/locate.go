// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package easytoyou

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/walteh/easy4us/pkg/remote"
	"gitlab.com/tozd/go/errors"
)

// DefaultUploadField is used when the located input has no name attribute.
const DefaultUploadField = "uploadfile[]"

// 🔍 FieldLocator finds the multipart field name of the upload input on the decoder page
type FieldLocator interface {
	LocateUploadField(doc *goquery.Document) (string, error)
}

// SelectorLocator tries a list of selectors in order, falling back to any input
// whose name mentions "file".
type SelectorLocator struct {
	// Selectors overrides the default selector list when set.
	Selectors []string
}

var defaultUploadSelectors = []string{
	"input#uploadfileblue",
	`input[type="file"]`,
}

func (l SelectorLocator) LocateUploadField(doc *goquery.Document) (string, error) {
	selectors := l.Selectors
	if len(selectors) == 0 {
		selectors = defaultUploadSelectors
	}

	for _, sel := range selectors {
		if input := doc.Find(sel).First(); input.Length() > 0 {
			return fieldName(input), nil
		}
	}

	var found *goquery.Selection
	doc.Find("input[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if strings.Contains(strings.ToLower(name), "file") {
			found = s
			return false
		}
		return true
	})
	if found != nil {
		return fieldName(found), nil
	}

	return "", errors.Errorf("%w: no upload input on decoder page", remote.ErrFormDiscovery)
}

func fieldName(input *goquery.Selection) string {
	if name, ok := input.Attr("name"); ok && name != "" {
		return name
	}
	return DefaultUploadField
}

// StaticLocator always returns the same field name.
type StaticLocator string

func (l StaticLocator) LocateUploadField(*goquery.Document) (string, error) {
	return string(l), nil
}
