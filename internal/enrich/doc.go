// Package enrich implements the external-provider clients used by the
// enrichment stages: public web search for profiles and company websites,
// batch contact discovery, and AI-generated outreach context.
package enrich
