// Package mutation groups the statements of one logical row change on an
// entity mapped across several tables.
//
// A Group orders the statements so that inserts and updates run from the
// root table outward and deletes run from the outermost table back to the
// root. Each statement is wrapped in a Handle that prepares it on first
// use and returns it to the session on release:
//
//	g, err := mutation.NewStandardGroup(model.Insert, target, ops, s)
//	if err != nil {
//		return err
//	}
//	res, err := mutation.NewExecutor(s).Execute(ctx, g, values)
//
// Inserts into the identifier table of an entity whose identifier is
// generated by the database are prepared through the identity insert
// delegate of the target, so the executor can read the key back and bind
// it into the remaining tables.
package mutation
