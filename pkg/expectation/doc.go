// Package expectation defines the expectations a client stores on the server:
// request match criteria paired with exactly one terminal action.
//
// Actions form a closed set. Responding actions (HTTPResponse, HTTPTemplate,
// HTTPClassCallback, HTTPObjectCallback) are set with ThenRespond, forwarding
// actions (HTTPForward, HTTPTemplate, HTTPClassCallback, HTTPObjectCallback,
// HTTPOverrideForwardedRequest) with ThenForward and HTTPError with ThenError.
// Every setter replaces the previous action.
//
// The JSON form uses one field per action kind, for example
//
//	{
//	  "httpRequest": {"method": {"not": true, "value": "DELETE"}, "path": "/users"},
//	  "httpForwardObjectCallback": {"clientId": "…", "responseCallback": true}
//	}
package expectation
