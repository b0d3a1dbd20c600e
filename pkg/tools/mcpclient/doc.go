// Package mcpclient connects to remote tool providers over the Model Context
// Protocol and exposes their tools as toolbox.Tool values whose handlers
// forward every call over the connection.
package mcpclient
