package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommentValidations(t *testing.T) {
	db := openTestDB(t)
	svc := NewCommentService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	post := createTestPost(t, db, bob.ID, "commentable")
	other := createTestPost(t, db, bob.ID, "other post")

	// missing post
	_, err := svc.Create(alice.ID, 9999, "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	top, err := svc.Create(alice.ID, post.ID, "top level", nil)
	require.NoError(t, err)
	assert.Nil(t, top.ParentID)
	assert.Equal(t, "alice", top.User.Name)

	// missing parent
	missing := uint(9999)
	_, err = svc.Create(alice.ID, post.ID, "reply", &missing)
	assert.ErrorIs(t, err, ErrNotFound)

	// parent on a different post
	_, err = svc.Create(alice.ID, other.ID, "cross-post reply", &top.ID)
	assert.ErrorIs(t, err, ErrBadRequest)

	reply, err := svc.Create(bob.ID, post.ID, "a reply", &top.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)
}

func TestListByPostBuildsNestedTree(t *testing.T) {
	db := openTestDB(t)
	svc := NewCommentService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	post := createTestPost(t, db, alice.ID, "threaded")

	// build out of order: root2 before root1's replies, grandchild last
	root1, err := svc.Create(alice.ID, post.ID, "first", nil)
	require.NoError(t, err)
	root2, err := svc.Create(bob.ID, post.ID, "second", nil)
	require.NoError(t, err)
	child, err := svc.Create(bob.ID, post.ID, "reply to first", &root1.ID)
	require.NoError(t, err)
	grandchild, err := svc.Create(alice.ID, post.ID, "nested deeper", &child.ID)
	require.NoError(t, err)

	tree, err := svc.ListByPost(post.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2, "only top-level comments at the root")

	// oldest-first at the top level
	assert.Equal(t, root1.ID, tree[0].ID)
	assert.Equal(t, root2.ID, tree[1].ID)

	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, child.ID, tree[0].Replies[0].ID)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, grandchild.ID, tree[0].Replies[0].Replies[0].ID)
	assert.Empty(t, tree[1].Replies)

	// every node carries its author
	assert.Equal(t, "alice", tree[0].User.Name)
	assert.Equal(t, "bob", tree[0].Replies[0].User.Name)
}

func TestListByPostEmpty(t *testing.T) {
	db := openTestDB(t)
	svc := NewCommentService(db)
	alice := createTestUser(t, db, "alice")
	post := createTestPost(t, db, alice.ID, "quiet")

	tree, err := svc.ListByPost(post.ID)
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestReactionsUniquePerTriple(t *testing.T) {
	db := openTestDB(t)
	svc := NewCommentService(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	post := createTestPost(t, db, alice.ID, "reactive")
	comment, err := svc.Create(bob.ID, post.ID, "react to me", nil)
	require.NoError(t, err)

	require.NoError(t, svc.AddReaction(alice.ID, comment.ID, "like"))
	// same triple again is a conflict
	assert.ErrorIs(t, svc.AddReaction(alice.ID, comment.ID, "like"), ErrConflict)
	// a different type from the same user is fine
	require.NoError(t, svc.AddReaction(alice.ID, comment.ID, "laugh"))
	// same type from a different user is fine
	require.NoError(t, svc.AddReaction(bob.ID, comment.ID, "like"))

	// missing comment
	assert.ErrorIs(t, svc.AddReaction(alice.ID, 9999, "like"), ErrNotFound)

	tree, err := svc.ListByPost(post.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Reactions, 3)

	require.NoError(t, svc.RemoveReaction(alice.ID, comment.ID, "like"))
	// removing again is NotFound
	assert.ErrorIs(t, svc.RemoveReaction(alice.ID, comment.ID, "like"), ErrNotFound)

	tree, err = svc.ListByPost(post.ID)
	require.NoError(t, err)
	assert.Len(t, tree[0].Reactions, 2)
}
