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

package streamer

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/wikiserv/wikiserv/pkg/web/errors"
	"github.com/wikiserv/wikiserv/pkg/web/headers"

	"github.com/spf13/afero"
)

func init() {
	mime.AddExtensionType(".tid", "application/x-tiddler")
	mime.AddExtensionType(".json", "application/json")
}

// FileOptions describes a file to send with SendFile
type FileOptions struct {
	// Fs is the filesystem Root is resolved against. nil uses the OS.
	Fs afero.Fs
	// Root is the directory that ReqPath may not escape
	Root string
	// ReqPath is the requested path relative to Root
	ReqPath string
	// Offset and Length select a byte range. A zero Length sends the rest
	// of the file. Callers selecting a range pass 206 as the status.
	Offset int64
	Length int64
	// Index is served for directory requests when set
	Index string
	// On404 runs instead of a default not-found response
	On404 func() error
	// OnDir runs for a directory without an Index, instead of a listing
	OnDir func() error
}

// SendFile streams a file below o.Root. Missing files and directories
// without an index are handed to the On404 and OnDir hooks. Without a hook
// the result is a 404 error for the request boundary to render.
func (s *Streamer) SendFile(status int, h http.Header, o FileOptions) error {
	fs := o.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	root := afero.NewBasePathFs(fs, o.Root)
	name := path.Clean("/" + filepath.ToSlash(o.ReqPath))

	fi, err := root.Stat(name)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return notFound(o.On404)
		}
		return err
	}
	if fi.IsDir() {
		if o.Index == "" {
			return notFound(o.OnDir)
		}
		name = path.Join(name, o.Index)
		if fi, err = root.Stat(name); err != nil || fi.IsDir() {
			return notFound(o.OnDir)
		}
	}

	f, err := root.Open(name)
	if err != nil {
		return notFound(o.On404)
	}
	size := fi.Size()
	offset := min(max(o.Offset, 0), size)
	length := size - offset
	if o.Length > 0 && o.Length < length {
		length = o.Length
	}
	if offset > 0 {
		if _, err = f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return err
		}
	}

	rh := s.comp.Header()
	headers.Merge(rh, h)
	if rh.Get(headers.NameContentType) == "" {
		ct := mime.TypeByExtension(path.Ext(name))
		if ct == "" {
			ct = headers.ValueOctetStream
		}
		rh.Set(headers.NameContentType, ct)
	}
	rh.Set(headers.NameContentLength, strconv.FormatInt(length, 10))
	rh.Set(headers.NameLastModified, fi.ModTime().UTC().Format(http.TimeFormat))
	// an empty range has no last byte to name
	if status == http.StatusPartialContent && length > 0 {
		rh.Set(headers.NameContentRange,
			fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, size))
	}
	return s.SendStream(status, nil, readCloser{io.LimitReader(f, length), f})
}

type readCloser struct {
	io.Reader
	io.Closer
}

func notFound(hook func() error) error {
	if hook != nil {
		return hook()
	}
	return errors.NotFound()
}
