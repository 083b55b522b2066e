package content

// SetValue returns a document where the node at p is v. An unset document is
// returned unchanged.
func SetValue(doc *Document, p Path, v Node) (*Document, error) {
	if doc == nil {
		return nil, nil
	}
	root, err := Write(doc.root, p, v)
	if err != nil {
		return doc, err
	}
	return &Document{root: root}, nil
}

// AppendArrayItem appends an element to the array at p. An empty array gets
// an empty object; otherwise the first element is cloned as a template with
// every field value reset to its kind's zero value. A non-array target or an
// unset document is returned unchanged.
func AppendArrayItem(doc *Document, p Path) *Document {
	if doc == nil {
		return nil
	}
	n, ok := doc.Read(p)
	if !ok {
		return doc
	}
	a, ok := n.(*Array)
	if !ok {
		return doc
	}
	var item Node = NewObject()
	if first, ok := a.At(0); ok {
		item = ZeroValue(first)
	}
	root, err := Write(doc.root, p, a.Append(item))
	if err != nil {
		return doc
	}
	return &Document{root: root}
}

// RemoveArrayItem removes element i of the array at p. Out-of-range indices,
// non-array targets and an unset document leave the input unchanged.
func RemoveArrayItem(doc *Document, p Path, i int) *Document {
	if doc == nil {
		return nil
	}
	n, ok := doc.Read(p)
	if !ok {
		return doc
	}
	a, ok := n.(*Array)
	if !ok {
		return doc
	}
	next, ok := a.Remove(i)
	if !ok {
		return doc
	}
	root, err := Write(doc.root, p, next)
	if err != nil {
		return doc
	}
	return &Document{root: root}
}

// ZeroValue returns a copy of n shaped as a fresh array item: every field
// keeps its kind, title and extra keys but has its value reset. An object
// field keeps its object with the fields inside reset, and an array field
// starts with no elements, so nested item shapes survive.
//
// Only scalar values take the kind's zero; a field holding an array or an
// object is never flattened to "", unlike a plain reset of every
// non-boolean value.
func ZeroValue(n Node) Node {
	switch v := n.(type) {
	case *Field:
		switch inner := v.Value().(type) {
		case *Array:
			return v.WithValue(NewArray())
		case *Object, *Field:
			return v.WithValue(ZeroValue(inner))
		}
		return v.WithValue(v.Kind().Zero())
	case *Object:
		ms := v.Members()
		for i := range ms {
			ms[i].Value = ZeroValue(ms[i].Value)
		}
		return NewObject(ms...)
	case *Array:
		items := v.Items()
		for i := range items {
			items[i] = ZeroValue(items[i])
		}
		return NewArray(items...)
	}
	return n
}
