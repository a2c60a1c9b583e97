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

// Package failures renders request errors as structured HTTP responses
package failures

import (
	"net/http"
	"strconv"

	werrors "github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/headers"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Body is the JSON document sent with every error response
type Body struct {
	Status  int            `json:"status"`
	Reason  werrors.Reason `json:"reason"`
	Details any            `json:"details,omitempty"`
}

// Response maps any error to the status, headers and body of its structured
// error response. Errors that are not *HTTPError become a 500 with no details.
func Response(err error) (int, http.Header, []byte) {
	he, ok := werrors.AsHTTPError(err)
	if !ok {
		he = werrors.Internal(err)
	}
	b, merr := json.Marshal(Body{Status: he.Status, Reason: he.Reason, Details: he.Details})
	if merr != nil {
		b, _ = json.Marshal(Body{Status: he.Status, Reason: he.Reason})
	}
	h := http.Header{
		headers.NameContentType:         {headers.ValueApplicationJSON},
		headers.NameContentLength:       {strconv.Itoa(len(b))},
		headers.NameCacheControl:        {headers.ValueNoStore},
		headers.NameXContentTypeOptions: {"nosniff"},
	}
	return he.Status, h, b
}

// Write writes the structured error response for err directly to w. It is
// used only before a Streamer exists for the request.
func Write(w http.ResponseWriter, err error) {
	if w == nil {
		return
	}
	status, h, b := Response(err)
	headers.Merge(w.Header(), h)
	w.WriteHeader(status)
	w.Write(b)
}
