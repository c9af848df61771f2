package lspserver

import (
	"context"
	"errors"
	"fmt"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/tinovyatkin/propls/internal/metadata"
)

// Client extension methods.
const (
	// MethodProjectInfo asks the client for the metadata of the project
	// owning a document.
	MethodProjectInfo = "quarkus/projectInfo"

	// MethodPropertyDefinition asks the client for the source location of
	// a property.
	MethodPropertyDefinition = "quarkus/propertyDefinition"

	// MethodPropertiesChanged is sent by the client when the metadata of
	// some projects changed.
	MethodPropertiesChanged = "quarkus/propertiesChanged"
)

// ProjectInfoParams are the params of MethodProjectInfo.
type ProjectInfoParams struct {
	URI string `json:"uri"`
}

// PropertyDefinitionParams are the params of MethodPropertyDefinition.
type PropertyDefinitionParams struct {
	URI            string `json:"uri"`
	PropertySource string `json:"propertySource"`
}

// PropertiesChangedParams are the params of MethodPropertiesChanged.
type PropertiesChangedParams struct {
	ProjectURIs []string `json:"projectURIs"`
}

// clientProvider fetches project metadata from the client.
type clientProvider struct {
	conn func() jsonrpc2.Conn
}

func (p clientProvider) Fetch(ctx context.Context, req metadata.Request) (*metadata.ProjectMetadata, error) {
	conn := p.conn()
	if conn == nil {
		return nil, metadata.ErrNoProject
	}
	var md metadata.ProjectMetadata
	if _, err := conn.Call(ctx, MethodProjectInfo, &ProjectInfoParams{URI: req.URI}, &md); err != nil {
		if isMethodNotFound(err) {
			return nil, metadata.ErrNoProject
		}
		return nil, fmt.Errorf("%s: %w", MethodProjectInfo, err)
	}
	if md.ProjectURI == "" {
		md.ProjectURI = string(req.Key)
	}
	return &md, nil
}

// requestPropertyDefinition asks the client where source is declared. A nil
// location means the client could not resolve it.
func requestPropertyDefinition(ctx context.Context, conn jsonrpc2.Conn, uri, source string) (*protocol.Location, error) {
	if conn == nil {
		return nil, errNoConnection
	}
	var loc *protocol.Location
	_, err := conn.Call(ctx, MethodPropertyDefinition, &PropertyDefinitionParams{URI: uri, PropertySource: source}, &loc)
	if err != nil {
		if isMethodNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if loc == nil || loc.URI == "" {
		return nil, nil
	}
	return loc, nil
}

func isMethodNotFound(err error) bool {
	var rpcErr *jsonrpc2.Error
	return errors.As(err, &rpcErr) && rpcErr.Code == jsonrpc2.MethodNotFound
}
