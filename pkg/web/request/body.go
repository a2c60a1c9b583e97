/*
 * Copyright 2018 The Trickster Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package request

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/wikiserv/wikiserv/pkg/web/errors"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrWrongBodyFormat is returned when a Body is read as a format other than
// the one it was parsed with
var ErrWrongBodyFormat = stderrors.New("wrong body format")

// Format names how a request body is read
type Format string

const (
	FormatIgnore  Format = "ignore"
	FormatStream  Format = "stream"
	FormatString  Format = "string"
	FormatJSON    Format = "json"
	FormatBuffer  Format = "buffer"
	FormatForm    Format = "www-form-urlencoded"
	FormatFormMap Format = "www-form-urlencoded-as-map"
)

var formats = map[Format]struct{}{
	FormatIgnore: {}, FormatStream: {}, FormatString: {}, FormatJSON: {},
	FormatBuffer: {}, FormatForm: {}, FormatFormMap: {},
}

// IsValid returns true if f is a known Format
func (f Format) IsValid() bool {
	_, ok := formats[f]
	return ok
}

// FormPair is one name=value pair of a form body, in request order
type FormPair struct {
	Name  string
	Value string
}

// Body is the request body, tagged with the Format it was read as. Each
// accessor checks the tag and returns ErrWrongBodyFormat on a mismatch.
type Body struct {
	format  Format
	stream  io.ReadCloser
	raw     []byte
	json    any
	form    []FormPair
	formMap map[string]string
}

// BodyFormat returns the Format the body was read as
func (b *Body) BodyFormat() Format {
	if b.format == "" {
		return FormatIgnore
	}
	return b.format
}

func (b *Body) expect(f Format) error {
	if b.BodyFormat() != f {
		return fmt.Errorf("%w: body is %s, not %s", ErrWrongBodyFormat, b.BodyFormat(), f)
	}
	return nil
}

// Stream returns the unread body of a FormatStream request
func (b *Body) Stream() (io.ReadCloser, error) {
	if err := b.expect(FormatStream); err != nil {
		return nil, err
	}
	return b.stream, nil
}

// Text returns the body of a FormatString request
func (b *Body) Text() (string, error) {
	if err := b.expect(FormatString); err != nil {
		return "", err
	}
	return string(b.raw), nil
}

// Buffer returns the body of a FormatBuffer request
func (b *Body) Buffer() ([]byte, error) {
	if err := b.expect(FormatBuffer); err != nil {
		return nil, err
	}
	return b.raw, nil
}

// JSON returns the parsed body of a FormatJSON request
func (b *Body) JSON() (any, error) {
	if err := b.expect(FormatJSON); err != nil {
		return nil, err
	}
	return b.json, nil
}

// DecodeJSON unmarshals the body of a FormatJSON request into v
func (b *Body) DecodeJSON(v any) error {
	if err := b.expect(FormatJSON); err != nil {
		return err
	}
	if err := json.Unmarshal(b.raw, v); err != nil {
		return errors.MalformedJSON(err)
	}
	return nil
}

// Form returns the ordered pairs of a FormatForm request
func (b *Body) Form() ([]FormPair, error) {
	if err := b.expect(FormatForm); err != nil {
		return nil, err
	}
	return b.form, nil
}

// FormMap returns the fields of a FormatFormMap request. The last value
// wins for repeated names.
func (b *Body) FormMap() (map[string]string, error) {
	if err := b.expect(FormatFormMap); err != nil {
		return nil, err
	}
	return b.formMap, nil
}

// ReadBody reads r as format f. Buffered formats are limited to limit bytes
// when limit is positive. Malformed bodies produce 400-class errors.
func ReadBody(r io.ReadCloser, f Format, limit int64) (Body, error) {
	switch f {
	case "", FormatIgnore:
		return Body{format: FormatIgnore}, nil
	case FormatStream:
		return Body{format: FormatStream, stream: r}, nil
	}
	if !f.IsValid() {
		return Body{}, fmt.Errorf("unknown body format %q", f)
	}
	raw, err := readAll(r, limit)
	if err != nil {
		return Body{}, err
	}
	b := Body{format: f, raw: raw}
	switch f {
	case FormatJSON:
		if b.json, err = parseJSON(raw); err != nil {
			return Body{}, err
		}
	case FormatForm:
		if b.form, err = ParseForm(string(raw)); err != nil {
			return Body{}, err
		}
	case FormatFormMap:
		pairs, err := ParseForm(string(raw))
		if err != nil {
			return Body{}, err
		}
		b.formMap = make(map[string]string, len(pairs))
		for _, p := range pairs {
			b.formMap[p.Name] = p.Value
		}
	}
	return b, nil
}

func readAll(r io.ReadCloser, limit int64) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	defer r.Close()
	var src io.Reader = r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	b, err := io.ReadAll(src)
	if err != nil {
		if _, ok := errors.AsHTTPError(err); ok {
			return nil, err
		}
		return nil, errors.InvalidRequest(err)
	}
	if limit > 0 && int64(len(b)) > limit {
		return nil, errors.BodyTooLarge(limit)
	}
	return b, nil
}

func parseJSON(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.MalformedJSON(err)
	}
	if key, ok := findPollution(v); ok {
		return nil, errors.PrototypePollution(key)
	}
	return v, nil
}

// findPollution walks v for a "__proto__" key, or a "constructor" key whose
// value is an object with its own "prototype" key
func findPollution(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if k == "__proto__" {
				return k, true
			}
			if k == "constructor" {
				if m, ok := val.(map[string]any); ok {
					if _, ok := m["prototype"]; ok {
						return k, true
					}
				}
			}
			if key, ok := findPollution(val); ok {
				return key, ok
			}
		}
	case []any:
		for _, val := range t {
			if key, ok := findPollution(val); ok {
				return key, ok
			}
		}
	}
	return "", false
}

// ParseForm parses an application/x-www-form-urlencoded body into ordered
// pairs. A field without "=" has an empty value.
func ParseForm(s string) ([]FormPair, error) {
	var out []FormPair
	for field := range strings.SplitSeq(s, "&") {
		if field == "" {
			continue
		}
		name, value, _ := strings.Cut(field, "=")
		n, err := url.QueryUnescape(name)
		if err != nil {
			return nil, errors.MalformedForm(err)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, errors.MalformedForm(err)
		}
		out = append(out, FormPair{Name: n, Value: v})
	}
	return out, nil
}
