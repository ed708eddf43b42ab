package mcpserver

// RuleFormatURI is the resource under which RuleFormatContract is published.
const RuleFormatURI = "synapse://rule-format"

// RuleFormatContract describes how rule marker files are written, so assistants
// can author or amend them correctly.
const RuleFormatContract = `# Synapse Rule File Format

Rules live in marker files named ` + "`.synapse.md`" + `. A marker file applies to every path
in its directory and below. Nearer files take precedence over files further up.

## Structure

` + "```" + `markdown
---
inherits:                 # OPTIONAL - rule files or directories, relative to this file
  - ../shared/.synapse.md
overrides:                # OPTIONAL - rule ids or names to suppress for this subtree
  - forbidden-0
tags: [rust, backend]     # OPTIONAL - copied onto every rule of this file
---

# Backend rules

FORBIDDEN: ` + "`unwrap()`" + ` - Propagate errors with ? instead
REQUIRED: ` + "`#[test]`" + ` - Every module carries tests
STANDARD: ` + "`tracing::`" + ` - Prefer tracing over println
` + "```" + `

## Declarations

A rule is one line: ` + "`<cue>: `pattern` - message`" + `. The cue is case-insensitive and must
start a word.

| Cue words | Kind | Enforcement |
|---|---|---|
| forbidden, never, must not | FORBIDDEN | BLOCKING: the pattern must not appear |
| required, must, mandatory | REQUIRED | BLOCKING: the pattern must appear somewhere |
| standard, use, prefer, should | STANDARD | SUGGESTION |

Rule ids are generated per kind in declaration order: ` + "`forbidden-0`" + `, ` + "`forbidden-1`" + `,
` + "`required-0`" + ` and so on. Ids are what ` + "`overrides`" + ` refers to.

## Patterns

- A pattern containing any of ` + "`. * + ? ( ) [ ] { } | ^ $ \\`" + ` is treated as a regular
  expression; anything else is matched as literal text.
- A regular expression that does not compile disables only that rule.
- Forbidden matches are reported per line with the 1-based line number.

## Inheritance

1. Every marker file from the target's directory up to the filesystem root applies.
2. ` + "`inherits`" + ` pulls in further files; cycles are ignored.
3. ` + "`overrides`" + ` from any file in the chain suppresses matching rules everywhere in the chain.
4. Suppression removes a rule. It does not replace it; declare the replacement explicitly.
`
