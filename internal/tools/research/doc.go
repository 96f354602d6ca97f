// Package research provides the lookup tools offered to the generation agent.
//
// Tools:
//   - npm-search: search the npm registry, JSON array of {name, description, score}
//   - npm-info: README of an npm package
//   - go-search: search pkg.go.dev for Go packages
//   - go-info: README and synopsis of a Go package from pkg.go.dev
//   - web-search: DuckDuckGo HTML search
//
// Every tool takes a single string argument named "input" and is wrapped by
// Guard, so failures reach the model as "Error: <cause>" text instead of
// aborting the agent run.
package research
