/*
Package wensco issues time-boxed door-access PIN codes for reservations kept in
a Google Sheets worksheet.

The service is intended to be triggered by a cron-style HTTP call rather than
run interactively: each GET /run performs one sequential pass over the
worksheet, requests a duration-hourly PIN from the igloohome API for every
reservation that still needs one, and writes the PIN (or the failure detail)
back to the originating row.

Endpoints:

  - /        liveness string
  - /health  liveness JSON
  - /version build version
  - /run     one processing pass; returns the per-row report
*/
package wensco
