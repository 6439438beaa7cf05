// Package rules models validation rules, their conditions and scopes, and the
// CEE processes that rules can be restricted to.
//
// A rule's condition is either structured (a conjunction of field atoms) or a
// raw expression handled by a separate sandboxed interpreter. The two forms
// are exclusive.
//
// Rule scoping:
//
//   - AppliesTo.ProcessTypes empty: the rule applies to every process.
//   - AppliesTo.DocumentTypes empty: the rule is global and always in scope.
//   - Otherwise the rule applies when at least one listed type is present.
//
// Cross-document rules additionally require every document type they
// reference; see Rule.MissingDocumentTypes.
package rules
