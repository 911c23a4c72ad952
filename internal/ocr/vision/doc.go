// Package vision is the client for the self-hosted OCR service
// (POST /ocr with base64 images, optional bearer token).
package vision
