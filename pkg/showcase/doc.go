/*
Package showcase renders live text generation samples through filesystem
templates.

A Manager parses full templates and partials from a directory, caches a
ready generator for every trained model in the store, and exposes a library
of template functions for drawing samples, sample sheets across
temperatures, and model statistics. Templates hot-reload via Refresh, so
pages can change without restarting the service.

Limits on sample length, sheet size, and temperature come from a
ShowcaseConfig and are enforced inside the template functions themselves,
keeping a single careless template from stalling the server.
*/
package showcase
