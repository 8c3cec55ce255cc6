// Package campaign implements campaign lifecycle management.
//
// The service layer contains all business logic for creating and updating a
// campaign together with its auto-generated segment and rules, serving the
// campaign read-model, and handing a saved campaign to delivery dispatch. It
// depends on the repository interface defined in this package and should
// never import from the api handlers.
//
// The repository implementation lives in repository/postgres/.
package campaign
