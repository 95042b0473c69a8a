package graphql

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/arnellebalane/instagram-graphql/feed"
)

// graphqlRequest is the standard GraphQL-over-HTTP request body
type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope
type graphqlResponse struct {
	Data   any           `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// executor resolves parsed operations against the root resolver,
// projecting typed results through the request's selection sets
type executor struct {
	schema   *ast.Schema
	resolver *RootResolver
}

func newExecutor(schema *ast.Schema, resolver *RootResolver) *executor {
	return &executor{schema: schema, resolver: resolver}
}

// execContext carries per-request state: coerced variables, fragment
// definitions, and the accumulated field errors
type execContext struct {
	ctx       context.Context
	variables map[string]any
	fragments ast.FragmentDefinitionList
	errors    gqlerror.List
}

func (ec *execContext) addError(err *gqlerror.Error) {
	ec.errors = append(ec.errors, err)
}

// Execute parses, validates, and runs a query or mutation operation.
// Subscriptions are rejected here; they arrive over the websocket
// transport instead.
func (e *executor) Execute(ctx context.Context, req graphqlRequest) *graphqlResponse {
	op, ec, errResp := e.prepare(ctx, req)
	if errResp != nil {
		return errResp
	}

	switch op.Operation {
	case ast.Query, ast.Mutation:
		data := e.executeRoot(ec, op)
		return &graphqlResponse{Data: data, Errors: ec.errors}
	case ast.Subscription:
		return &graphqlResponse{Errors: gqlerror.List{{
			Message: "Subscriptions are only supported over websocket connections",
			Extensions: map[string]interface{}{
				"code": "SUBSCRIPTION_OVER_HTTP",
			},
		}}}
	default:
		return &graphqlResponse{Errors: gqlerror.List{{
			Message: fmt.Sprintf("Unsupported operation %q", op.Operation),
		}}}
	}
}

// prepare parses the document, selects the operation, and coerces
// variables
func (e *executor) prepare(ctx context.Context, req graphqlRequest) (*ast.OperationDefinition, *execContext, *graphqlResponse) {
	doc, listErr := gqlparser.LoadQuery(e.schema, req.Query)
	if len(listErr) > 0 {
		return nil, nil, &graphqlResponse{Errors: listErr}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, nil, &graphqlResponse{Errors: gqlerror.List{{
			Message: fmt.Sprintf("Operation %q not found in document", req.OperationName),
		}}}
	}

	variables, err := validator.VariableValues(e.schema, op, req.Variables)
	if err != nil {
		var gqlErr *gqlerror.Error
		if !stderrors.As(err, &gqlErr) {
			gqlErr = gqlerror.Errorf("%s", err.Error())
		}
		return nil, nil, &graphqlResponse{Errors: gqlerror.List{gqlErr}}
	}

	return op, &execContext{
		ctx:       ctx,
		variables: variables,
		fragments: doc.Fragments,
	}, nil
}

// executeRoot resolves each top-level field of a query or mutation.
// Root fields are all nullable, so a failed field resolves to null with
// an error entry instead of discarding sibling results.
func (e *executor) executeRoot(ec *execContext, op *ast.OperationDefinition) map[string]any {
	data := make(map[string]any)

	for _, field := range e.collectFields(ec, op.SelectionSet) {
		alias := field.Alias
		path := ast.Path{ast.PathName(alias)}

		switch field.Name {
		case "__typename":
			if op.Operation == ast.Mutation {
				data[alias] = "Mutation"
			} else {
				data[alias] = "Query"
			}

		case "posts":
			views, err := e.resolver.Posts(ec.ctx)
			if err != nil {
				ec.addError(mapError(err, "posts"))
				data[alias] = nil
				continue
			}
			data[alias] = e.projectPostList(ec, field, views, path)

		case "post":
			id, _ := field.ArgumentMap(ec.variables)["id"].(string)
			view, err := e.resolver.Post(ec.ctx, id)
			if err != nil {
				ec.addError(mapError(err, "post"))
				data[alias] = nil
				continue
			}
			if view == nil {
				data[alias] = nil
				continue
			}
			data[alias] = e.projectPost(ec, field, view, path)

		case "users":
			users, err := e.resolver.Users(ec.ctx)
			if err != nil {
				ec.addError(mapError(err, "users"))
				data[alias] = nil
				continue
			}
			list := make([]any, 0, len(users))
			for i, user := range users {
				list = append(list, e.projectUser(ec, field, user, append(path, ast.PathIndex(i))))
			}
			data[alias] = list

		case "user":
			id, _ := field.ArgumentMap(ec.variables)["id"].(string)
			user, err := e.resolver.User(ec.ctx, id)
			if err != nil {
				ec.addError(mapError(err, "user"))
				data[alias] = nil
				continue
			}
			if user == nil {
				data[alias] = nil
				continue
			}
			data[alias] = e.projectUser(ec, field, user, path)

		case "addPost":
			view, err := e.resolver.AddPost(ec.ctx, addPostInput(field.ArgumentMap(ec.variables)))
			if err != nil {
				ec.addError(mapError(err, "addPost"))
				data[alias] = nil
				continue
			}
			data[alias] = e.projectPost(ec, field, view, path)
		}
	}

	return data
}

// subscriptionOp is a validated, ready-to-project subscription
// operation held for the lifetime of one live stream
type subscriptionOp struct {
	field     *ast.Field
	alias     string
	fragments ast.FragmentDefinitionList
	variables map[string]any
}

// prepareSubscription parses and validates a subscription operation.
// The schema exposes a single subscription field, latestPost.
func (e *executor) prepareSubscription(ctx context.Context, req graphqlRequest) (*subscriptionOp, *graphqlResponse) {
	op, ec, errResp := e.prepare(ctx, req)
	if errResp != nil {
		return nil, errResp
	}

	if op.Operation != ast.Subscription {
		return nil, &graphqlResponse{Errors: gqlerror.List{{
			Message: "Only subscription operations may be started on a websocket connection",
			Extensions: map[string]interface{}{
				"code": "BAD_REQUEST",
			},
		}}}
	}

	fields := e.collectFields(ec, op.SelectionSet)
	if len(fields) != 1 || fields[0].Name != "latestPost" {
		return nil, &graphqlResponse{Errors: gqlerror.List{{
			Message: "Subscription operations must select exactly the latestPost field",
			Extensions: map[string]interface{}{
				"code": "BAD_REQUEST",
			},
		}}}
	}

	return &subscriptionOp{
		field:     fields[0],
		alias:     fields[0].Alias,
		fragments: ec.fragments,
		variables: ec.variables,
	}, nil
}

// executeEvent projects one announced post through the subscription's
// selection set
func (e *executor) executeEvent(ctx context.Context, sub *subscriptionOp, view *feed.PostView) *graphqlResponse {
	ec := &execContext{
		ctx:       ctx,
		variables: sub.variables,
		fragments: sub.fragments,
	}

	data := map[string]any{
		sub.alias: e.projectPost(ec, sub.field, view, ast.Path{ast.PathName(sub.alias)}),
	}
	return &graphqlResponse{Data: data, Errors: ec.errors}
}

// projectPostList projects a slice of composed views through the
// field's selection set
func (e *executor) projectPostList(ec *execContext, field *ast.Field, views []*feed.PostView, path ast.Path) []any {
	list := make([]any, 0, len(views))
	for i, view := range views {
		list = append(list, e.projectPost(ec, field, view, append(path, ast.PathIndex(i))))
	}
	return list
}

// projectPost projects one composed post view. A dangling author
// reference resolves the author field to null plus a pathed error; the
// remaining fields still reach the caller.
func (e *executor) projectPost(ec *execContext, field *ast.Field, view *feed.PostView, path ast.Path) map[string]any {
	out := make(map[string]any)

	for _, sub := range e.collectFields(ec, field.SelectionSet) {
		alias := sub.Alias

		switch sub.Name {
		case "__typename":
			out[alias] = "Post"
		case "id":
			out[alias] = view.ID
		case "caption":
			out[alias] = nullableString(view.Caption)
		case "comments_count":
			out[alias] = view.CommentsCount
		case "like_count":
			out[alias] = view.LikeCount
		case "media_type":
			out[alias] = nullableString(string(view.MediaType))
		case "media_url":
			out[alias] = nullableString(view.MediaURL)
		case "permalink":
			out[alias] = view.Permalink
		case "author":
			if view.AuthorErr != nil {
				ec.addError(anomalyError(view.AuthorErr, append(path, ast.PathName(alias))))
				out[alias] = nil
				continue
			}
			if view.Author == nil {
				out[alias] = nil
				continue
			}
			out[alias] = e.projectUser(ec, sub, view.Author, append(path, ast.PathName(alias)))
		}
	}

	return out
}

// projectUser projects a user record, including the derived posts
// traversal when selected
func (e *executor) projectUser(ec *execContext, field *ast.Field, user *feed.User, path ast.Path) map[string]any {
	out := make(map[string]any)

	for _, sub := range e.collectFields(ec, field.SelectionSet) {
		alias := sub.Alias

		switch sub.Name {
		case "__typename":
			out[alias] = "User"
		case "id":
			out[alias] = user.ID
		case "name":
			out[alias] = nullableString(user.Name)
		case "handle":
			out[alias] = user.Handle
		case "posts":
			views, err := e.resolver.PostsByAuthor(ec.ctx, user)
			if err != nil {
				ec.addError(mapError(err, "user.posts"))
				out[alias] = nil
				continue
			}
			out[alias] = e.projectPostList(ec, sub, views, append(path, ast.PathName(alias)))
		}
	}

	return out
}

// collectFields flattens a selection set into its fields, expanding
// fragment spreads and inline fragments. The schema has no interfaces
// or unions, so type conditions never exclude a fragment here.
func (e *executor) collectFields(ec *execContext, selections ast.SelectionSet) []*ast.Field {
	fields := make([]*ast.Field, 0, len(selections))
	for _, selection := range selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields = append(fields, sel)
		case *ast.FragmentSpread:
			if fragment := ec.fragments.ForName(sel.Name); fragment != nil {
				fields = append(fields, e.collectFields(ec, fragment.SelectionSet)...)
			}
		case *ast.InlineFragment:
			fields = append(fields, e.collectFields(ec, sel.SelectionSet)...)
		}
	}
	return fields
}

// addPostInput converts coerced GraphQL arguments into the write
// coordinator's input
func addPostInput(args map[string]any) feed.CreatePostInput {
	input := feed.CreatePostInput{}

	if caption, ok := args["caption"].(string); ok {
		input.Caption = caption
	}
	if permalink, ok := args["permalink"].(string); ok {
		input.Permalink = permalink
	}
	if mediaURL, ok := args["media_url"].(string); ok {
		input.MediaURL = mediaURL
	}
	if authorID, ok := args["author_id"].(string); ok {
		input.AuthorID = authorID
	}
	if count, ok := toInt(args["comments_count"]); ok {
		input.CommentsCount = &count
	}
	if count, ok := toInt(args["like_count"]); ok {
		input.LikeCount = &count
	}

	return input
}

// toInt normalizes the numeric representations produced by literal
// arguments and JSON-decoded variables
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// nullableString maps an unset optional field to GraphQL null
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
