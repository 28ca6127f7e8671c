package sqlinline

const QInsertUser = `--sql 31b70fa5-ecd3-42f6-9a10-c82c91d5e644
insert into users (id, email, tier, credits_balance, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, 0, now(), now())
returning created_at, updated_at;
`

const QSelectUserByID = `--sql 46712646-9972-43dd-9371-704e93d17e50
select id::text, email, tier, credits_balance, created_at, updated_at
from users
where id = $1::uuid;
`

const QUpdateUserTier = `--sql 5c6559ef-d51e-4252-bb1f-75ac32c9f192
update users
set tier = $2::text, updated_at = now()
where id = $1::uuid;
`
