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
	"io"
	"strings"

	"github.com/wikiserv/wikiserv/pkg/encoding/providers"
	"github.com/wikiserv/wikiserv/pkg/web/errors"

	"github.com/hashicorp/go-multierror"
)

// ReadEncodedBody is ReadBody for a body sent with the provided
// Content-Encoding header values. The size limit applies to the decoded
// bytes. Bodies that are ignored are never decoded.
func ReadEncodedBody(r io.ReadCloser, contentEncoding []string, f Format,
	limit int64) (Body, error) {
	if f == "" || f == FormatIgnore || len(contentEncoding) == 0 {
		return ReadBody(r, f, limit)
	}
	dr, err := DecodeContent(r, contentEncoding)
	if err != nil {
		return Body{}, err
	}
	return ReadBody(dr, f, limit)
}

// DecodeContent wraps r in a decoder for each coding in the Content-Encoding
// values, undoing the last applied coding first. An unknown coding returns
// a 415 error and a bad stream header a 400. Read errors from the decoders
// are 400 errors as well. Closing the result closes r. On error r is
// closed before returning.
func DecodeContent(r io.ReadCloser, contentEncoding []string) (io.ReadCloser, error) {
	var codings []string
	for _, v := range contentEncoding {
		for c := range strings.SplitSeq(v, ",") {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" && c != providers.IdentityValue {
				codings = append(codings, c)
			}
		}
	}
	if r == nil || len(codings) == 0 {
		return r, nil
	}
	d := &decodedBody{body: r}
	var src io.Reader = r
	for i := len(codings) - 1; i >= 0; i-- {
		dec, err := providers.NewDecoder(codings[i], src)
		if err != nil {
			d.Close()
			if stderrors.Is(err, providers.ErrUnsupportedEncoding) {
				return nil, errors.UnsupportedEncoding(codings[i])
			}
			return nil, errors.MalformedEncoding(err)
		}
		d.decoders = append(d.decoders, dec)
		src = dec
	}
	d.src = src
	return d, nil
}

type decodedBody struct {
	src      io.Reader
	decoders []io.Closer
	body     io.Closer
}

func (d *decodedBody) Read(p []byte) (int, error) {
	n, err := d.src.Read(p)
	if err != nil && err != io.EOF {
		if _, ok := errors.AsHTTPError(err); !ok {
			err = errors.MalformedEncoding(err)
		}
	}
	return n, err
}

func (d *decodedBody) Close() error {
	var result *multierror.Error
	for i := len(d.decoders) - 1; i >= 0; i-- {
		if err := d.decoders[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := d.body.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
