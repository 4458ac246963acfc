// Package codec provides message codecs for the protocol registry.
//
// JSONCodec is the default codec for every transport Gray Logic devices speak:
// devices publish a JSON object (one message) or a JSON array (a batch), and
// commands are sent back as a single JSON object.
//
// Wire format:
//
//	{
//	  "id": "2f7c...",            // optional, generated when absent
//	  "type": "report_property",  // required
//	  "timestamp": 1760000000000, // optional, unix milliseconds
//	  "headers": {...},           // optional
//	  "payload": {...}            // optional
//	}
package codec
