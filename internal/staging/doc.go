// Package staging prepares the folder that becomes the content of an installer image.
package staging
