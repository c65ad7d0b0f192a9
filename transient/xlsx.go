/*
Copyright © 2021 the CATS authors.
This file is part of CATS.

CATS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CATS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CATS.  If not, see <http://www.gnu.org/licenses/>.
*/

package transient

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/tealeg/xlsx"
)

// fileCache holds previously parsed instrument logs to avoid reading
// the same file multiple times, for example when one bypass log is
// consumed by several catalyst runs.
var fileCache *requestcache.Cache

var loadFileCacheOnce sync.Once

// ReadFile reads an instrument log from disk, using a cache to avoid
// parsing the same file more than once. Files with the extension
// ".xlsx" are read as Microsoft Excel workbooks; everything else is
// read as tab-delimited text. The returned data is an independent
// copy, so operations on it do not affect later reads of the same
// file.
func ReadFile(path string) (*TransientData, error) {
	loadFileCacheOnce.Do(func() {
		fileCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			name := req.(string)
			if strings.ToLower(filepath.Ext(name)) == ".xlsx" {
				return parseExcel(name)
			}
			return parseText(name)
		}, runtime.GOMAXPROCS(-1), requestcache.Memory(100))
	})
	r := fileCache.NewRequest(context.Background(), path, path)
	d, err := r.Result()
	if err != nil {
		return nil, err
	}
	return d.(*TransientData).Copy(), nil
}

// parseExcel reads an instrument log from the first sheet of a
// Microsoft Excel workbook. The sheet has the same layout as the
// tab-delimited text files: a header row of column names, observation
// rows, and repeated header rows marking new time frames.
func parseExcel(path string) (*TransientData, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("transient: opening xlsx file: %v", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("transient: %s has no sheets", filepath.Base(path))
	}
	sheet := f.Sheets[0]

	td := &TransientData{
		Name: filepath.Base(path),
		Data: make(map[string][]float64),
	}
	for ri, row := range sheet.Rows {
		fields := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			fields = append(fields, strings.TrimSpace(cell.Value))
		}
		// Trailing empty cells come from formatting beyond the data.
		for len(fields) > 0 && fields[len(fields)-1] == "" {
			fields = fields[:len(fields)-1]
		}
		if len(fields) == 0 {
			continue
		}
		if td.Columns == nil {
			td.Columns = fields
			for _, name := range fields {
				td.Data[name] = nil
			}
			td.frames = append(td.frames, span{})
			continue
		}
		if isHeader(fields, td.Columns) {
			n := len(td.Data[td.Columns[0]])
			td.frames[len(td.frames)-1].end = n
			td.frames = append(td.frames, span{start: n})
			continue
		}
		if len(fields) != len(td.Columns) {
			return nil, fmt.Errorf("transient: %s row %d: got %d fields, want %d", td.Name, ri+1, len(fields), len(td.Columns))
		}
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("transient: %s row %d: parsing %q: %v", td.Name, ri+1, s, err)
			}
			name := td.Columns[i]
			td.Data[name] = append(td.Data[name], v)
		}
	}
	if td.Columns == nil {
		return nil, fmt.Errorf("transient: %s is empty", td.Name)
	}
	td.frames[len(td.frames)-1].end = td.Rows()
	return td, nil
}
