// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

/*
Package services adapts blocking components to suture's Serve(ctx) error
lifecycle.

HTTPServerService turns ListenAndServe/Shutdown into a context-aware
service with a bounded drain. SweeperService calls Sweep on a fixed
interval, used for job retention in the in-memory job store.
*/
package services
