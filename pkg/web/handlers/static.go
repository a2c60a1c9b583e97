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

package handlers

import (
	"net/http"
	"strings"

	werrors "github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/request"
	"github.com/wikiserv/wikiserv/pkg/web/streamer"
)

// Static sends files from the static root
func (h *Handlers) Static(st *request.State) error {
	p := st.PathParams["path"]
	return st.SendFile(http.StatusOK, nil, streamer.FileOptions{
		Fs:      h.opts.StaticFs,
		Root:    h.opts.StaticRoot,
		ReqPath: p,
		Index:   h.opts.StaticIndex,
		On404: func() error {
			return werrors.NotFound()
		},
		OnDir: func() error {
			if strings.HasSuffix(st.URL().Path, "/") {
				return werrors.NotFound()
			}
			return st.Redirect(http.StatusMovedPermanently,
				st.PathPrefix()+st.URL().Path+"/")
		},
	})
}
