// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/innkeeper/internal/bulk"
	"github.com/tomtom215/innkeeper/internal/validation"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// MaxBulkRequests caps the entries of one bulk batch.
const MaxBulkRequests = 100

// refreshNonceParam is the query parameter carrying the refresh nonce.
const refreshNonceParam = "refreshNonce"

// BulkQueryRequest is the validated body of the bulk endpoint. Entries are
// not validated here; a malformed entry fails on its own.
type BulkQueryRequest struct {
	Requests []bulk.Request `validate:"required,min=1,max=100"`
}

// TablePageRequest is the validated query of the table page endpoint.
type TablePageRequest struct {
	Page int `validate:"min=1,max=100000"`
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// validateRequest runs the shared validator over req.
func validateRequest(req interface{}) error {
	if err := validation.ValidateStruct(req); err != nil {
		return err
	}
	return nil
}

func getIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s must be an integer", name)
	}
	return n, nil
}
