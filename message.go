package main

const (
	MsgAPIInfo = "YOLOv8 Object Detection API"

	MsgInvalidRequest = "Could not read an image from the request. Send it as the multipart field \"image\", a JSON body {\"image\": \"<base64>\"}, or the raw request body."

	MsgUploadTooLarge = "The uploaded image is larger than this server accepts."

	MsgInvalidImage = "The uploaded file could not be decoded as an image. Supported formats are JPEG, PNG, GIF, BMP, TIFF and WebP."

	MsgEngineBusy = "The detection engine is busy. Please retry in a moment."

	MsgProcessingFailed = "Something went wrong while processing the image. Quote the trace id when reporting this."
)

const (
	CodeInvalidRequest  = "invalid_request"
	CodeUploadTooLarge  = "payload_too_large"
	CodeInvalidImage    = "invalid_image"
	CodeSessionError    = "session_error"
	CodeProcessingError = "processing_error"
	CodeNotFound        = "not_found"
	CodeInternalError   = "internal_error"
)
