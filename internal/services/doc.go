// Package services contains the business-logic layer between the HTTP
// transport and the pipeline engine.
package services
